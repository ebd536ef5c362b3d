package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"retouch/internal/app/di"
	"retouch/internal/app/retouch"
	"retouch/internal/domain/agent/loop"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <image>",
		Short: "Retouch one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}
			return withContainer(cmd, cfg, func(c *di.Container) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", cyan("retouching"), args[0])
				report, err := c.Retouch.Run(cmd.Context(), retouch.RunRequest{ImagePath: args[0]})
				if report != nil {
					printReport(out, report)
				}
				outcome := loop.OutcomeAborted
				if report != nil {
					outcome = report.Outcome
				}
				return sessionExit(cmd.Context(), err, outcome)
			})
		},
	}
}

func printReport(out io.Writer, r *retouch.Report) {
	status := green(string(r.Outcome))
	switch r.Outcome {
	case loop.OutcomeTooManyRetries:
		status = yellow(string(r.Outcome))
	case loop.OutcomeAborted:
		status = red(string(r.Outcome))
	}
	fmt.Fprintf(out, "%s %s  attempts=%d versions=%d\n", bold(r.Image), status, r.Attempts, r.Artifacts)
	if r.Verdict != "" {
		fmt.Fprintf(out, "  %s %s\n", gray("verdict:"), r.Verdict)
	}
	if r.FinalPath != "" {
		fmt.Fprintf(out, "  %s %s\n", gray("final:"), r.FinalPath)
	}
	if r.Dir != "" {
		fmt.Fprintf(out, "  %s %s\n", gray("session:"), r.Dir)
	}
	if r.Err != nil {
		fmt.Fprintf(out, "  %s %v\n", gray("error:"), r.Err)
	}
}
