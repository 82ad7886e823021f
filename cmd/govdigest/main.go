// Command govdigest serves and prints daily digests of provincial forestry
// news.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "govdigest",
	Short: "govdigest - provincial forestry news digests",
	Long: `govdigest crawls the forestry bureau news pages of several provinces,
keeps the articles published in the last DAYS_AGO days and turns each one
into a short labelled digest.

Usage:
  govdigest serve
  govdigest crawl [--source NAME] [--json]
  govdigest sources`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("GOVDIGEST_CONFIG"),
		"Path to a YAML config file (GOVDIGEST_CONFIG)")

	rootCmd.AddCommand(newServeCmd(), newCrawlCmd(), newSourcesCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
