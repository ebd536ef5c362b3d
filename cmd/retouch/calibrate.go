package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retouch/internal/infra/automation"
)

func newCalibrateCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate-check <calibration.yaml>",
		Short: "Validate a calibration map and print the pointer positions of each control",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := automation.LoadCalibration(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s hidpi=%g controls=%d\n", green("ok"), cal.HiDPI, len(cal.Controls))
			for _, name := range cal.ControlNames() {
				control := cal.Controls[name]
				fmt.Fprintf(out, "%s\n", bold(name))
				for _, value := range []float64{control.Min, control.Neutral, control.Max} {
					p, err := cal.Position(name, value)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  %8g -> (%d, %d)\n", value, p.X, p.Y)
				}
			}
			return nil
		},
	}
}
