package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	statsuc "github.com/kailas-cloud/scorpius/internal/usecase/stats"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection, cache, budget and configuration statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), 0, func(ctx context.Context, a *app) error {
				report, err := a.stats.Report(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(cmd.OutOrStdout(), report)
					return nil
				}
				printStats(cmd.OutOrStdout(), &report)
				return nil
			})
		},
	}
}

func printStats(w io.Writer, r *statsuc.Report) {
	fmt.Fprintf(w, "Generated at %s (env %s)\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"), r.Config.Environment)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tDOCUMENTS\tDESCRIPTION")
	for _, c := range r.Collections {
		docs := fmt.Sprint(c.Documents)
		if c.Err != nil {
			docs = "?"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, docs, c.Description)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nModel %s, batch %d, concurrency %d, %d req/min\n",
		r.Config.Model, r.Config.BatchSize, r.Config.Concurrency, r.Config.RequestsPerMinute)

	if c := r.Cache; c != nil {
		fmt.Fprintf(w, "Cache (%s): %d entries, %.1f/%.0f MB, TTL %s, hit rate %.1f%%, saved $%.4f\n",
			r.Config.CacheBackend, c.Entries, c.SizeMB(), float64(c.MaxSizeBytes)/(1<<20), c.TTL,
			c.HitRate*100, c.SavingsUSD)
	} else {
		fmt.Fprintln(w, "Cache: disabled")
	}

	if b := r.Budget; b != nil {
		fmt.Fprintf(w, "Budget (%s, %s): daily %d/%s, monthly %d/%s\n",
			b.Provider, b.Action, b.DailyUsed, limitString(b.DailyLimit), b.MonthlyUsed, limitString(b.MonthlyLimit))
	}
}

func limitString(limit int64) string {
	if limit <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(limit)
}
