package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tracyhatemice/noticecal/internal/display"
	"github.com/tracyhatemice/noticecal/internal/scanner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan new mail once and store any events found",
	Long: `Scan the mailbox from the stored watermark, classify matching notices
and append extracted events to events.json.

A connection failure in the middle of the scan still stores whatever was
found and exits successfully; the next run resumes after the last message
inspected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := prepare(cfg, logger); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		sc, err := newScanner(cfg, logger)
		if err != nil {
			return err
		}
		rep, err := sc.Run(ctx)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func printReport(w io.Writer, rep *scanner.Report) {
	fmt.Fprintf(w, "%s  inspected %d, processed %d, %d new event(s), watermark %d -> %d\n",
		display.StateBadge(rep.State.String()),
		rep.Inspected, rep.Processed, len(rep.Events), rep.Prior, rep.LatestSeen)
	if rep.Failures > 0 || rep.Dropped > 0 {
		fmt.Fprintf(w, "  %s\n", display.Dim.Render(fmt.Sprintf("%d failed, %d dropped without a start date", rep.Failures, rep.Dropped)))
	}
	if rep.Err != nil {
		display.ErrorMsg(w, "scan stopped early: %v", rep.Err)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
