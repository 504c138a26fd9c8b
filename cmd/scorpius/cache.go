package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("embedding cache is disabled in the configuration")

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the embedding cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached embedding",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), 0, func(ctx context.Context, a *app) error {
					if a.cache == nil {
						return errCacheDisabled
					}
					entries := a.cache.Stats().Entries
					if err := a.cache.Clear(ctx); err != nil {
						return err
					}
					if jsonOutput {
						printJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "deleted": entries})
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached embedding(s)\n", entries)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "warm",
			Short: "Rebuild the size index from persisted entries and apply the size cap",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), 0, func(ctx context.Context, a *app) error {
					if a.cache == nil {
						return errCacheDisabled
					}
					n, err := a.cache.Warm(ctx)
					if err != nil {
						return err
					}
					s := a.cache.Stats()
					if jsonOutput {
						printJSON(cmd.OutOrStdout(), map[string]any{"scanned": n, "entries": s.Entries, "size_bytes": s.SizeBytes})
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d entries, %d kept (%.1f MB)\n", n, s.Entries, s.SizeMB())
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache size and hit statistics",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), 0, func(_ context.Context, a *app) error {
					if a.cache == nil {
						return errCacheDisabled
					}
					s := a.cache.Stats()
					if jsonOutput {
						printJSON(cmd.OutOrStdout(), s)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%d entries, %.1f MB, TTL %s\n", s.Entries, s.SizeMB(), s.TTL)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
