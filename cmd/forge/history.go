package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forgehttp/forge/internal/config"
	"github.com/forgehttp/forge/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		wipe  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or clear recorded sends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := config.LoadSettings()
			if err != nil {
				return err
			}
			store, err := history.Open(config.HistoryPath(), settings.History.MaxEntries)
			if err != nil {
				return err
			}
			defer store.Close()

			if wipe {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "history cleared")
				return nil
			}

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, "no history")
				return nil
			}
			return writeHistory(a, entries, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&wipe, "clear", false, "Delete all recorded entries")
	return cmd
}

func writeHistory(a *app, entries []history.Entry, now time.Time) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		status := e.Status
		if e.Failed() && e.Error != "" {
			status = "error: " + e.Error
		}
		env := e.Environment
		if env == "" {
			env = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.RelTime(e.ExecutedAt, now, "ago", "from now"),
			env,
			e.Method,
			e.URL,
			status,
			e.Duration.Round(time.Millisecond),
			humanize.IBytes(uint64(max(e.SizeBytes, 0))),
		)
	}
	return tw.Flush()
}
