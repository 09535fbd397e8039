package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracyhatemice/noticecal/internal/checkpoint"
	"github.com/tracyhatemice/noticecal/internal/display"
	"github.com/tracyhatemice/noticecal/internal/event"
	"github.com/tracyhatemice/noticecal/internal/store"
)

type statusOutput struct {
	Watermark  uint32           `json:"watermark"`
	Events     int              `json:"events"`
	EventsFile string           `json:"events_file"`
	Upcoming   []event.Calendar `json:"upcoming"`
}

var (
	statusJSON  bool
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show the watermark and upcoming events",
	Long: `Show where the next scan will resume and the next events on the calendar.

Examples:
  noticecal status             # Overview
  noticecal status -n 20       # Show more upcoming events
  noticecal status --json      # Machine-readable output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := cfg.Calendar.Location()
		if err != nil {
			return fmt.Errorf("calendar timezone: %w", err)
		}

		wm := checkpoint.NewStore(cfg.CheckpointPath(), logger).Load()
		events, err := store.NewEvents(cfg.EventsPath(), logger).Calendar()
		if err != nil {
			return err
		}
		upcoming := display.Upcoming(events, time.Now().In(loc), loc, statusLimit)

		w := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(statusOutput{
				Watermark:  uint32(wm),
				Events:     len(events),
				EventsFile: cfg.EventsPath(),
				Upcoming:   upcoming,
			})
		}

		display.Header(w, "noticecal status")
		fmt.Fprintln(w)

		fmt.Fprintln(w, "  Mailbox")
		fmt.Fprintf(w, "    %-12s %s\n", "Server:", cfg.Mailbox.Host)
		fmt.Fprintf(w, "    %-12s %s\n", "Recipient:", cfg.Match.Recipient)
		if wm == 0 {
			fmt.Fprintf(w, "    %-12s %s\n", "Watermark:", display.Dim.Render("none (next scan starts at the first message)"))
		} else {
			fmt.Fprintf(w, "    %-12s %d\n", "Watermark:", wm)
		}
		fmt.Fprintln(w)

		fmt.Fprintln(w, "  Calendar")
		fmt.Fprintf(w, "    %-12s %d  %s\n", "Events:", len(events), display.Dim.Render(cfg.EventsPath()))
		fmt.Fprintln(w)

		if len(upcoming) == 0 {
			display.SubHeader(w, "  No upcoming events")
			return nil
		}
		fmt.Fprintf(w, "  Upcoming (%d)\n", len(upcoming))
		for _, e := range upcoming {
			display.EventLine(w, e, loc)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Maximum number of upcoming events to show")
	rootCmd.AddCommand(statusCmd)
}
