package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calzaplan/calzaplan/internal/compile"
	"github.com/calzaplan/calzaplan/internal/config"
	"github.com/calzaplan/calzaplan/internal/model"
)

func newCompileCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Validate the input tables and compile constraints without planning",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := config.Load(dir)
			if err != nil {
				return err
			}
			params := model.DefaultParams()
			compiled := compile.Compile(in.Constraints, in.Progress, in.Models, in.Days, params.Blocks, in.ReoptimizeFrom)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d models, %d days, %d constraints\n",
				color.GreenString("OK"), len(in.Models), len(in.Days), len(in.Constraints))
			for _, m := range in.Models {
				eff := compiled.EffectiveVolume(m)
				if eff != m.Volume {
					fmt.Fprintf(out, "  %s: volume %d -> %d\n", m.ID, m.Volume, eff)
				}
			}
			if compiled.ReoptimizeFrom > 0 {
				fmt.Fprintf(out, "  frozen days: %d\n", compiled.ReoptimizeFrom)
			}
			for _, w := range compiled.Warnings {
				fmt.Fprintf(out, "  %s %s\n", color.YellowString("warn"), w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "planning directory with the input tables")
	return cmd
}
