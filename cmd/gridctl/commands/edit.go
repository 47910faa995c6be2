package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// edit: stage a cell edit and optionally commit it.
func editCmd() *cobra.Command {
	var commit bool
	cmd := &cobra.Command{
		Use:   "edit <id> <column> <value>",
		Short: "Edit one cell (validated locally, saved with --commit)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, column, raw := args[0], args[1], args[2]
			ctx := cmd.Context()

			schema, err := loadSchema(ctx)
			if err != nil {
				return err
			}
			col, ok := schema.Column(column)
			if !ok && schema.Len() > 0 {
				return grid.ValidationErrors{{Column: column, Message: "unknown column"}}
			}
			value, err := parseCellValue(col, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", column, err)
			}

			g, err := openGrid(ctx, remote, schema, grid.TableState{
				Pagination: grid.Pagination{Page: 1, PageSize: 1},
			})
			if err != nil {
				return err
			}
			defer g.Close()

			if err := g.EditCell(id, column, value); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !commit {
				if err := schema.Validate(g.Editor().Pending(id), nil); err != nil {
					return err
				}
				fmt.Fprintf(out, "row %s: %s = %v is valid (not saved, use --commit)\n", id, column, value)
				return nil
			}

			if err := g.CommitRow(ctx, id); err != nil {
				return err
			}
			g.Wait()
			fmt.Fprintf(out, "row %s: %s saved\n", id, column)
			return nil
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "save the edit")
	return cmd
}
