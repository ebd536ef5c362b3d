package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"retouch/internal/app/di"
	"retouch/internal/app/retouch"
	tools "retouch/internal/infra/tools/retouch"
)

func newApplyCommand() *cobra.Command {
	var (
		operation string
		rawArgs   []string
	)
	cmd := &cobra.Command{
		Use:     "apply --op <operation> [--arg key=value ...] <input> <output>",
		Short:   "Apply one catalogue operation without a decision-maker",
		Example: "retouch apply --op adjust_contrast --arg contrast_factor=30 in.jpg out.png",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if operation == "" {
				return errors.New("--op is required")
			}
			callArgs, err := retouch.ParseArguments(rawArgs)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}
			return withContainer(cmd, cfg, func(c *di.Container) error {
				report, err := c.Retouch.Apply(cmd.Context(), retouch.ApplyRequest{
					Input:     args[0],
					Output:    args[1],
					Operation: operation,
					Arguments: callArgs,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s(%s) -> %s\n", green("applied"), report.Operation,
					tools.FormatArguments(report.Arguments), report.Output)
				for _, warning := range report.Warnings {
					fmt.Fprintln(cmd.ErrOrStderr(), warningText(warning.Error()))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&operation, "op", "", "catalogue operation name")
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "argument as key=value, repeatable")
	return cmd
}
