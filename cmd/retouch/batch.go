package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retouch/internal/app/di"
)

func newBatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <dir>",
		Short: "Retouch every supported image in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}
			return withContainer(cmd, cfg, func(c *di.Container) error {
				out := cmd.OutOrStdout()
				batch, err := c.Retouch.Batch(cmd.Context(), args[0])
				if batch != nil {
					for _, report := range batch.Reports {
						printReport(out, report)
					}
					fmt.Fprintf(out, "%s %d sessions, %d not satisfied\n", cyan(batch.BatchID), len(batch.Reports), batch.Failed())
				}
				if err != nil {
					return sessionExit(cmd.Context(), err, "")
				}
				if batch.Failed() > 0 {
					return &ExitCodeError{Code: exitUnsatisfied, Err: fmt.Errorf("%d of %d sessions not satisfied", batch.Failed(), len(batch.Reports))}
				}
				return nil
			})
		},
	}
}
