package source

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

func TestPostgres_BuildQuery(t *testing.T) {
	s := NewPostgres(nil, "products", productSchema(t), "id")
	cols := `"id", "name", "price", "status", "released", "inStock"`

	tests := []struct {
		name      string
		params    grid.Params
		wantCount string
		wantSel   string
		wantArgs  []any
	}{
		{
			name:      "defaults",
			params:    grid.Params{},
			wantCount: `SELECT COUNT(*) FROM "products"`,
			wantSel:   `SELECT ` + cols + ` FROM "products" ORDER BY "id" ASC LIMIT $1 OFFSET $2`,
			wantArgs:  []any{25, 0},
		},
		{
			name: "filters search and sort",
			params: grid.Params{
				Pagination: grid.Pagination{Page: 3, PageSize: 10},
				Sorting:    []grid.Sort{{Field: "price", Direction: grid.Desc}, {Field: "bogus"}},
				Filters: map[string]any{
					"price":  grid.NumberRange{Min: ptr(10.0)},
					"status": "Active",
					"name":   "50%",
				},
				Search: "wid",
			},
			wantCount: `SELECT COUNT(*) FROM "products" WHERE "name"::text ILIKE $1 AND "price" >= $2 AND lower("status"::text) = lower($3) AND ("name"::text ILIKE $4)`,
			wantSel: `SELECT ` + cols + ` FROM "products" WHERE "name"::text ILIKE $1 AND "price" >= $2 AND lower("status"::text) = lower($3) AND ("name"::text ILIKE $4)` +
				` ORDER BY "price" DESC NULLS LAST, "id" ASC LIMIT $5 OFFSET $6`,
			wantArgs: []any{`%50\%%`, 10.0, "Active", "%wid%", 10, 20},
		},
		{
			name: "date range and any-of",
			params: grid.Params{
				Pagination: grid.Pagination{Page: 1, PageSize: 5},
				Filters: map[string]any{
					"released": grid.DateRange{To: ptr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
					"status":   []string{"Active", "archived"},
				},
			},
			wantCount: `SELECT COUNT(*) FROM "products" WHERE "released" < $1 AND lower("status"::text) = ANY($2)`,
			wantSel:   `SELECT ` + cols + ` FROM "products" WHERE "released" < $1 AND lower("status"::text) = ANY($2) ORDER BY "id" ASC LIMIT $3 OFFSET $4`,
			wantArgs:  []any{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), []string{"active", "archived"}, 5, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := s.buildQuery(tt.params)
			if err != nil {
				t.Fatalf("buildQuery: %v", err)
			}
			if q.count != tt.wantCount {
				t.Errorf("count =\n%s\nwant\n%s", q.count, tt.wantCount)
			}
			if q.sel != tt.wantSel {
				t.Errorf("select =\n%s\nwant\n%s", q.sel, tt.wantSel)
			}
			if got := q.selArgs(); !reflect.DeepEqual(got, tt.wantArgs) {
				t.Errorf("args = %#v, want %#v", got, tt.wantArgs)
			}
		})
	}
}

func TestPostgres_UnknownFilter(t *testing.T) {
	s := NewPostgres(nil, "products", productSchema(t), "")
	_, err := s.buildQuery(grid.Params{Filters: map[string]any{"password": "x"}})
	var verrs grid.ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Column != "password" {
		t.Errorf("err = %v, want unknown column password", err)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"price", `"price"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := quoteIdentifier(tt.in); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	var n pgtype.Numeric
	if err := n.Scan("12.5"); err != nil {
		t.Fatal(err)
	}
	if got := normalizeValue(n); got != 12.5 {
		t.Errorf("numeric = %v, want 12.5", got)
	}
	if got := normalizeValue(int32(7)); got != 7.0 {
		t.Errorf("int32 = %v, want 7", got)
	}
	id := [16]byte{0x12, 0x34}
	if got := normalizeValue(id); got != "12340000-0000-0000-0000-000000000000" {
		t.Errorf("uuid = %v", got)
	}
}
