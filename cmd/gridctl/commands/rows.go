package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// rows: fetch one page and print it.
func rowsCmd() *cobra.Command {
	var (
		page     int
		pageSize int
		sorts    []string
		filters  []string
		search   string
		asJSON   bool
		columns  []string
	)
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print one page of rows",
		Example: `  gridctl rows --page 2 --sort price:desc
  gridctl rows --filter category=hardware --filter price=10..50 --search dock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := loadSchema(ctx)
			if err != nil {
				return err
			}
			sorting, err := parseSorting(sorts)
			if err != nil {
				return err
			}
			filterValues, err := parseFilters(schema, filters)
			if err != nil {
				return err
			}

			g, err := openGrid(ctx, remote, schema, grid.TableState{
				Pagination: grid.Pagination{Page: page, PageSize: pageSize},
				Sorting:    sorting,
				Filters:    filterValues,
				Search:     search,
			})
			if err != nil {
				return err
			}
			defer g.Close()

			view := g.View()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"items":       view.Rows,
					"totalCount":  view.Total,
					"currentPage": view.Page,
					"perPage":     view.PageSize,
					"totalPages":  view.TotalPages,
				})
			}
			cols := displayColumns(g.Schema(), view.Rows, columns)
			if err := printTable(out, cols, g.DisplayRows()); err != nil {
				return err
			}
			fmt.Fprintf(out, "\npage %d of %d (%d rows)\n", view.Page, view.TotalPages, view.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", grid.DefaultPageSize, "rows per page")
	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "sort as field:asc|desc (repeatable)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as key=value, key=min..max, or key=a,b (repeatable)")
	cmd.Flags().StringVar(&search, "search", "", "global search text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the page as JSON")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to print (default: all)")
	return cmd
}

// displayColumns picks the printed columns: the requested ones, else the
// schema's, else every key seen in rows.
func displayColumns(schema *grid.Schema, rows []grid.Row, requested []string) []grid.ColumnDefinition {
	if len(requested) > 0 {
		out := make([]grid.ColumnDefinition, 0, len(requested))
		for _, key := range requested {
			col, ok := schema.Column(key)
			if !ok {
				col = grid.ColumnDefinition{Key: key, Header: key}
			}
			out = append(out, col)
		}
		return out
	}
	if schema.Len() > 0 {
		return schema.Columns()
	}

	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]grid.ColumnDefinition, len(keys))
	for i, k := range keys {
		out[i] = grid.ColumnDefinition{Key: k, Header: k}
	}
	return out
}

func printTable(w io.Writer, cols []grid.ColumnDefinition, rows []grid.RowView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(cols)+1)
	header = append(header, " ")
	for _, c := range cols {
		h := c.Header
		if h == "" {
			h = c.Key
		}
		header = append(header, strings.ToUpper(h))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, rv := range rows {
		cells := make([]string, 0, len(cols)+1)
		cells = append(cells, rowMarker(rv))
		for _, c := range cols {
			cells = append(cells, formatCell(c, rv.Row[c.Key]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// rowMarker flags selected and edited rows in the first column.
func rowMarker(rv grid.RowView) string {
	switch {
	case rv.Status == grid.StatusFailed:
		return "!"
	case rv.Status != grid.StatusClean:
		return "*"
	case rv.Selected:
		return ">"
	}
	return " "
}

func formatCell(col grid.ColumnDefinition, v any) string {
	if col.Format != nil {
		return col.Format(v)
	}
	if v == nil {
		return ""
	}
	switch v.(type) {
	case []string, []any:
		return strings.Join(grid.ToStrings(v), ",")
	}
	return grid.Stringify(v)
}
