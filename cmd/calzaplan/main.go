package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calzaplan",
		Short: "calzaplan — stitching production scheduler",
		Long:  "Calzaplan plans a footwear factory's stitching week: weekly lot sizing, per-block daily schedules and operator assignment, from a directory of YAML tables.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newWatchCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calzaplan %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
