package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newCrawlCmd() *cobra.Command {
	var (
		source string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run the sources once and print their digests",
		Long: `Run every enabled source once, or only --source, and print the
digests to stdout. A failing source is logged and skipped unless it was
selected with --source.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var digests []string
			if source != "" {
				digests, err = a.service.RunSource(ctx, source)
				if err != nil {
					return err
				}
			} else {
				digests = a.service.RunAll(ctx)
			}

			return printDigests(cmd.OutOrStdout(), digests, asJSON)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Run a single source by name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array instead of text")
	return cmd
}

// printDigests writes one digest per paragraph, or the same JSON array the
// HTTP endpoint returns.
func printDigests(w io.Writer, digests []string, asJSON bool) error {
	if asJSON {
		if digests == nil {
			digests = []string{}
		}
		data, err := json.MarshalIndent(digests, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(digests) == 0 {
		_, err := fmt.Fprintln(w, "No digests.")
		return err
	}

	for i, d := range digests {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, d); err != nil {
			return err
		}
	}
	return nil
}
