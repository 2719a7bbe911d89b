package main

import (
	"github.com/spf13/cobra"

	"github.com/calzaplan/calzaplan/internal/model"
	"github.com/calzaplan/calzaplan/internal/pipeline"
	"github.com/calzaplan/calzaplan/internal/report"
)

func newPlanCmd() *cobra.Command {
	var (
		dir       string
		logLevel  string
		showDays  bool
		showStaff bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run a full planning pass and write resultado.yaml",
		Long:  "Loads the input tables, compiles constraints, solves the weekly plan, expands every day into time blocks, assigns operators, writes resultado.yaml atomically and prints the weekly grid.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pipeline.NewLogger(cmd.ErrOrStderr(), pipeline.ParseLogLevel(logLevel))
			runner := pipeline.New(dir, model.DefaultParams(), logger)

			result, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := runner.Write(result); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = out.Write([]byte(report.Weekly(result)))
			if showDays {
				_, _ = out.Write([]byte(report.Days(result)))
			}
			if showStaff {
				for _, day := range result.Days {
					_, _ = out.Write([]byte(report.Assignments(day)))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "planning directory with the input tables")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&showDays, "days", false, "also print per-day summaries")
	cmd.Flags().BoolVar(&showStaff, "staff", false, "also print operator assignments")
	return cmd
}
