package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/source"
)

// delete: select rows by id and delete the selection.
func deleteCmd() *cobra.Command {
	var sequential bool
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := loadSchema(ctx)
			if err != nil {
				return err
			}

			var src grid.DataSource = remote
			if sequential {
				src = perRow{remote}
			}
			g, err := openGrid(ctx, src, schema, grid.TableState{
				Pagination: grid.Pagination{Page: 1, PageSize: 1},
			})
			if err != nil {
				return err
			}
			defer g.Close()

			g.Selection().Select(args...)
			res, err := g.DeleteSelected(ctx)
			g.Wait()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "deleted %d of %d\n", res.Affected, len(args))
			for _, be := range res.Errors {
				fmt.Fprintf(out, "  %s: %s\n", be.ID, be.Message)
			}
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("no rows deleted")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sequential, "sequential", false, "delete one request per row instead of one bulk request")
	return cmd
}

// perRow exposes only the single-row operations of the REST source, so bulk
// operations fall back to one request per row.
type perRow struct{ rest *source.REST }

func (p perRow) Fetch(ctx context.Context, params grid.Params) (*grid.Result, error) {
	return p.rest.Fetch(ctx, params)
}

func (p perRow) Delete(ctx context.Context, id string) error {
	return p.rest.Delete(ctx, id)
}

func (p perRow) Update(ctx context.Context, id string, changes grid.Row) (grid.Row, error) {
	return p.rest.Update(ctx, id, changes)
}
