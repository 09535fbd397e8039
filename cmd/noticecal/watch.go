package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var watchNow bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan on a schedule until interrupted",
	Long: `Run a scan on the cron schedule from the configuration (default every
30 minutes). A tick that arrives while the previous scan is still running is
skipped. SIGINT or SIGTERM interrupts the running scan, which still stores
its results before exiting.`,
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

		var failed error
		scan := func() {
			rep, err := sc.Run(ctx)
			if err != nil {
				logger.Error("scan failed", "error", err)
				failed = err
				return
			}
			printReport(cmd.OutOrStdout(), rep)
		}

		cl := cronLogger{logger: logger}
		c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
		if _, err := c.AddFunc(cfg.Schedule, scan); err != nil {
			return fmt.Errorf("schedule %q: %w", cfg.Schedule, err)
		}

		logger.Info("noticecal watching", "schedule", cfg.Schedule, "mailbox", cfg.Mailbox.Host, "recipient", cfg.Match.Recipient)
		if watchNow {
			scan()
		}
		c.Start()

		<-ctx.Done()
		logger.Info("shutting down, waiting for scan to finish...")

		// Force exit on second signal.
		go func() {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			logger.Warn("forced shutdown")
			os.Exit(1)
		}()

		<-c.Stop().Done()
		logger.Info("noticecal stopped")
		return failed
	},
}

// cronLogger routes scheduler messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}

func init() {
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "run a scan immediately instead of waiting for the first tick")
	rootCmd.AddCommand(watchCmd)
}
