package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	healthuc "github.com/kailas-cloud/scorpius/internal/usecase/health"
)

func newHealthCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the vector store, the embedding provider and a probe search",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), timeout, func(ctx context.Context, a *app) error {
				report := a.health.Check(ctx)
				if jsonOutput {
					printJSON(cmd.OutOrStdout(), report)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", report.Status)
					components := make([]string, 0, len(report.Checks))
					for c := range report.Checks {
						components = append(components, c)
					}
					sort.Strings(components)
					for _, c := range components {
						line := fmt.Sprintf("  %-10s %s", c, report.Checks[c])
						if msg := report.Errors[c]; msg != "" {
							line += " (" + msg + ")"
						}
						fmt.Fprintln(cmd.OutOrStdout(), line)
					}
				}
				if report.Status == healthuc.Unhealthy {
					return fmt.Errorf("engine is %s", report.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	return cmd
}
