package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracyhatemice/noticecal/internal/display"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Regenerate events.ics from events.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ICSPath() == "" {
			return fmt.Errorf("storage.ics_file is empty; nothing to export")
		}
		sink, err := newSink(cfg, logger)
		if err != nil {
			return err
		}
		if err := sink.Export(); err != nil {
			return err
		}
		display.SuccessMsg(cmd.OutOrStdout(), "wrote %s", cfg.ICSPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
