package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// schema: list the remote grid's columns and what each allows.
func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Describe the grid's columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tHEADER\tTYPE\tFLAGS\tOPTIONS")
			for _, c := range schema.Columns() {
				opts := make([]string, len(c.Options))
				for i, o := range c.Options {
					opts[i] = o.Value
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Key, c.Header, c.Type, columnFlags(c), strings.Join(opts, ","))
			}
			return tw.Flush()
		},
	}
}

func columnFlags(c grid.ColumnDefinition) string {
	var flags []string
	if c.Sortable {
		flags = append(flags, "sort")
	}
	if c.Filterable {
		flags = append(flags, "filter")
	}
	if c.Editable {
		flags = append(flags, "edit")
	}
	if c.Searchable {
		flags = append(flags, "search")
	}
	for _, r := range c.Rules {
		if r.Kind == grid.RuleRequired {
			flags = append(flags, "required")
		}
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}
