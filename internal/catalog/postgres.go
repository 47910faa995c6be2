package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/source"
)

// productsDDL creates the products table. Column names match schema keys.
const productsDDL = `CREATE TABLE IF NOT EXISTS %s (
	"id"            text PRIMARY KEY,
	"sku"           text NOT NULL,
	"name"          text NOT NULL,
	"category"      text,
	"price"         numeric(12,2) NOT NULL,
	"stock"         numeric,
	"status"        text,
	"tags"          text[],
	"featured"      boolean NOT NULL DEFAULT false,
	"released"      date,
	"supplierEmail" text,
	"website"       text
)`

// EnsureProducts creates the products table if needed and seeds it when
// empty. It returns the source serving the table.
func EnsureProducts(ctx context.Context, db source.DB, table string, seed []grid.Row) (*source.Postgres, error) {
	quoted := `"` + table + `"`
	if _, err := db.Exec(ctx, fmt.Sprintf(productsDDL, quoted)); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	src := source.NewPostgres(db, table, ProductSchema(), "id")

	var count int64
	if err := db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoted)).Scan(&count); err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}
	if count > 0 {
		return src, nil
	}

	for _, row := range seed {
		if _, err := src.Create(ctx, row); err != nil {
			return nil, fmt.Errorf("seed %s row %v: %w", table, row["id"], err)
		}
	}
	slog.Info("seeded table", "table", table, "rows", len(seed))
	return src, nil
}
