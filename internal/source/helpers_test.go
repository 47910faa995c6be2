package source

import (
	"fmt"
	"testing"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

func productSchema(t *testing.T) *grid.Schema {
	t.Helper()
	s, err := grid.NewSchema([]grid.ColumnDefinition{
		{Key: "id", Type: grid.FieldText},
		{Key: "name", Type: grid.FieldText, Sortable: true, Filterable: true, Editable: true, Searchable: true,
			Rules: []grid.Rule{grid.Required()}},
		{Key: "price", Type: grid.FieldCurrency, Sortable: true, Filterable: true, Editable: true,
			Rules: []grid.Rule{grid.Min(0)}},
		{Key: "status", Type: grid.FieldSelect, Filterable: true, Editable: true,
			Options: []grid.Option{{Value: "active"}, {Value: "archived"}}},
		{Key: "released", Type: grid.FieldDate, Sortable: true, Filterable: true},
		{Key: "inStock", Type: grid.FieldBoolean, Filterable: true},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

// productRows returns n rows with ids "1".."n" and prices 10, 20, 30, ...
func productRows(n int) []grid.Row {
	rows := make([]grid.Row, n)
	for i := range rows {
		status := "active"
		if i%2 == 1 {
			status = "archived"
		}
		rows[i] = grid.Row{
			"id":       fmt.Sprint(i + 1),
			"name":     fmt.Sprintf("Widget %d", i+1),
			"price":    float64((i + 1) * 10),
			"status":   status,
			"released": fmt.Sprintf("2024-01-%02d", i+1),
			"inStock":  i%3 != 0,
		}
	}
	return rows
}

func ids(rows []grid.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = grid.Stringify(r["id"])
	}
	return out
}

func ptr[T any](v T) *T { return &v }
