package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"retouch/internal/app/toolregistry"
	"retouch/internal/domain/agent/loop"
	"retouch/internal/domain/agent/ports"
	jsonx "retouch/internal/shared/json"
)

func newCatalogCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the operations offered to the decision-maker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := toolregistry.NewRegistry(toolregistry.Config{})
			if err != nil {
				return err
			}
			defs := registry.List()
			controls := []ports.ToolDefinition{
				loop.SubmitPlanDefinition(registry.Names(ports.CategoryAdjustment)),
				loop.SatisfactoryDefinition(),
				loop.ReturnResponseDefinition(),
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := jsonx.MarshalIndent(map[string]any{"catalogue": defs, "control": controls}, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			for _, def := range defs {
				printDefinition(out, def)
			}
			fmt.Fprintln(out, gray("control tools:"))
			for _, def := range controls {
				printDefinition(out, def)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the schemas as JSON")
	return cmd
}

func printDefinition(out io.Writer, def ports.ToolDefinition) {
	fmt.Fprintf(out, "%s\n", bold(def.Name))
	keys := make([]string, 0, len(def.Parameters.Properties))
	for key := range def.Parameters.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	required := map[string]bool{}
	for _, key := range def.Parameters.Required {
		required[key] = true
	}
	for _, key := range keys {
		prop := def.Parameters.Properties[key]
		var details []string
		details = append(details, prop.Type)
		if prop.Minimum != nil && prop.Maximum != nil {
			details = append(details, fmt.Sprintf("[%g, %g]", *prop.Minimum, *prop.Maximum))
		}
		if !required[key] {
			details = append(details, "optional")
		}
		fmt.Fprintf(out, "  %s %s\n", key, gray(strings.Join(details, " ")))
	}
}
