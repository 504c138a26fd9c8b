// Command scorpius serves and operates the procurement retrieval engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/scorpius/internal/version"
)

var (
	envName    string
	configPath string
	jsonOutput bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scorpius",
		Short: "Retrieval engine for public-procurement tenders",
		Long: `Scorpius embeds tender notices, regulations and past bids into a
vector store and ranks them against the tender being analysed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "config environment (default $ENV or local)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "explicit config file path")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version info",
			Run: func(cmd *cobra.Command, _ []string) {
				if jsonOutput {
					printJSON(cmd.OutOrStdout(), map[string]string{
						"version": version.Version,
						"commit":  version.Commit,
						"date":    version.Date,
					})
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
		newServeCmd(),
		newSearchCmd(),
		newIngestCmd(),
		newStatsCmd(),
		newHealthCmd(),
		newCacheCmd(),
	)
	return rootCmd
}
