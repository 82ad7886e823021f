package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/pevans/govdigest/scraper"
	"github.com/pevans/govdigest/sources"
	"github.com/spf13/cobra"
)

func newSourcesCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the registered sources and their last run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			statuses := map[string]*sources.Status{}
			if a.status != nil {
				list, err := a.status.ListStatuses()
				if err != nil {
					return err
				}
				for i := range list {
					statuses[list[i].Name] = &list[i]
				}
			}

			printSourcesTable(cmd.OutOrStdout(), a.adapters, statuses, a.status != nil, time.Now())
			if verbose {
				printSourceErrors(cmd.OutOrStdout(), a.adapters, statuses)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show the last error of failing sources")
	return cmd
}

// printSourcesTable prints one row per adapter. Columns are padded by
// display width so CJK labels line up.
func printSourcesTable(
	w io.Writer,
	adapters []scraper.Adapter,
	statuses map[string]*sources.Status,
	withStatus bool,
	now time.Time,
) {
	if len(adapters) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return
	}

	header := []string{"NAME", "LABEL", "ENTRIES", "DELAY"}
	if withStatus {
		header = append(header, "STATUS", "DIGESTS", "LAST RUN")
	}

	rows := [][]string{header}
	for _, a := range adapters {
		delay := "-"
		if a.RequestDelay > 0 {
			delay = a.RequestDelay.String()
		}
		row := []string{a.Name, a.Label, strconv.Itoa(len(a.EntryURLs)), delay}
		if withStatus {
			row = append(row, statusColumns(a, statuses[a.Name], now)...)
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(w, strings.Join(cells, "  "))
	}
}

func statusColumns(a scraper.Adapter, status *sources.Status, now time.Time) []string {
	state := "never run"
	switch {
	case a.Disabled:
		state = "disabled"
	case status == nil || status.LastRunAt == nil:
	case status.Healthy():
		state = "ok"
	default:
		state = fmt.Sprintf("failing (%d)", status.FetchErrorCount)
	}

	if status == nil || status.LastRunAt == nil {
		return []string{state, "-", "-"}
	}
	return []string{
		state,
		strconv.Itoa(status.DigestCount),
		formatDuration(now.Sub(*status.LastRunAt)) + " ago",
	}
}

// printSourceErrors lists the last error of every failing source.
func printSourceErrors(w io.Writer, adapters []scraper.Adapter, statuses map[string]*sources.Status) {
	for _, a := range adapters {
		status := statuses[a.Name]
		if status == nil || status.LastError == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", a.Name)
		fmt.Fprintf(w, "  Error Count: %d\n", status.FetchErrorCount)
		fmt.Fprintf(w, "  Last Error: %s\n", *status.LastError)
		if status.LastSuccessAt != nil {
			fmt.Fprintf(w, "  Last Success: %s\n", status.LastSuccessAt.Format("2006-01-02 15:04:05"))
		}
	}
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}
