package main

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calzaplan/calzaplan/internal/config"
	"github.com/calzaplan/calzaplan/internal/pipeline"
	"github.com/calzaplan/calzaplan/internal/report"
	"github.com/calzaplan/calzaplan/internal/yamlio"
)

func newReportCmd() *cobra.Command {
	var (
		dir       string
		logLevel  string
		showDays  bool
		showStaff bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the last written plan without re-planning",
		Long:  "Reads resultado.yaml from the planning directory and prints the weekly grid. A corrupted result file is quarantined and the previous plan restored from its .bak before rendering.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pipeline.NewLogger(cmd.ErrOrStderr(), pipeline.ParseLogLevel(logLevel))
			path := filepath.Join(dir, config.ResultFile)

			var result pipeline.Result
			err := yamlio.Load(path, &result)
			var perr *yamlio.ParseError
			if errors.As(err, &perr) {
				quarantined, qerr := yamlio.Quarantine(dir, path)
				if qerr != nil {
					return qerr
				}
				logger.Warnf("%s is corrupted, moved to %s", config.ResultFile, quarantined)
				if rerr := yamlio.RestoreFromBackup(path); rerr != nil {
					return rerr
				}
				logger.Infof("restored %s from backup", config.ResultFile)
				result = pipeline.Result{}
				err = yamlio.Load(path, &result)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = out.Write([]byte(report.Weekly(&result)))
			if showDays {
				_, _ = out.Write([]byte(report.Days(&result)))
			}
			if showStaff {
				for _, day := range result.Days {
					_, _ = out.Write([]byte(report.Assignments(day)))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "planning directory with resultado.yaml")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&showDays, "days", false, "also print per-day summaries")
	cmd.Flags().BoolVar(&showStaff, "staff", false, "also print operator assignments")
	return cmd
}
