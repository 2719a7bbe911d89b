package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/calzaplan/calzaplan/internal/model"
	"github.com/calzaplan/calzaplan/internal/pipeline"
)

func newWatchCmd() *cobra.Command {
	var (
		dir      string
		logLevel string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-plan whenever an input table changes",
		Long:  "Runs a planning pass, then watches the input directory and re-plans on every change to an input table, debounced. Blocks until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pipeline.NewLogger(cmd.ErrOrStderr(), pipeline.ParseLogLevel(logLevel))
			runner := pipeline.New(dir, model.DefaultParams(), logger)
			return runner.Watch(cmd.Context(), debounce)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "planning directory with the input tables")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before re-planning")
	return cmd
}
