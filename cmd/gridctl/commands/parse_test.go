package commands

import (
	"reflect"
	"testing"
	"time"

	"github.com/JonMunkholm/gridkit/internal/catalog"
	"github.com/JonMunkholm/gridkit/internal/grid"
)

func TestParseFilters(t *testing.T) {
	schema := catalog.ProductSchema()
	ten, fifty := 10.0, 50.0
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec string
		key  string
		want any
	}{
		{"select", "category=hardware", "category", "hardware"},
		{"number exact", "price=10", "price", grid.NumberRange{Min: &ten, Max: &ten}},
		{"number range", "price=10..50", "price", grid.NumberRange{Min: &ten, Max: &fifty}},
		{"number open max", "price=10..", "price", grid.NumberRange{Min: &ten}},
		{"number open min", "price=..50", "price", grid.NumberRange{Max: &fifty}},
		{"date range", "released=2024-01-01..2024-02-01", "released", grid.DateRange{From: &jan, To: &feb}},
		{"multi-select", "tags=new, sale", "tags", []string{"new", "sale"}},
		{"boolean", "featured=yes", "featured", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(schema, []string{tt.spec})
			if err != nil {
				t.Fatalf("parseFilters(%q) error = %v", tt.spec, err)
			}
			if !reflect.DeepEqual(got[tt.key], tt.want) {
				t.Errorf("parseFilters(%q)[%s] = %#v, want %#v", tt.spec, tt.key, got[tt.key], tt.want)
			}
		})
	}
}

func TestParseFilters_Errors(t *testing.T) {
	schema := catalog.ProductSchema()

	tests := []struct {
		name string
		spec string
	}{
		{"missing equals", "category"},
		{"empty key", "=x"},
		{"unknown column", "color=red"},
		{"not filterable", "website=x"},
		{"bad number", "price=cheap"},
		{"empty range", "price=.."},
		{"bad date", "released=yesterday"},
		{"bad boolean", "featured=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFilters(schema, []string{tt.spec}); err == nil {
				t.Errorf("parseFilters(%q) error = nil, want error", tt.spec)
			}
		})
	}
}

func TestParseFilters_NoSchema(t *testing.T) {
	schema, err := grid.NewSchema(nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := parseFilters(schema, []string{"anything=Value"})
	if err != nil {
		t.Fatalf("parseFilters() error = %v", err)
	}
	if got["anything"] != "Value" {
		t.Errorf("parseFilters()[anything] = %v, want Value", got["anything"])
	}
}

func TestParseCellValue(t *testing.T) {
	schema := catalog.ProductSchema()
	col := func(key string) grid.ColumnDefinition {
		c, ok := schema.Column(key)
		if !ok {
			t.Fatalf("column %s missing", key)
		}
		return c
	}

	tests := []struct {
		name string
		col  grid.ColumnDefinition
		raw  string
		want any
	}{
		{"currency", col("price"), "12.50", 12.5},
		{"number", col("stock"), "7", 7.0},
		{"invalid number passes through", col("stock"), "lots", "lots"},
		{"boolean", col("featured"), "false", false},
		{"multi-select", col("tags"), "eco,new", []string{"eco", "new"}},
		{"text", col("name"), "Dock", "Dock"},
		{"empty clears", col("name"), "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCellValue(tt.col, tt.raw)
			if err != nil {
				t.Fatalf("parseCellValue(%q) error = %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCellValue(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseSorting(t *testing.T) {
	got, err := parseSorting([]string{"price:desc", "name,-stock"})
	if err != nil {
		t.Fatalf("parseSorting() error = %v", err)
	}
	want := []grid.Sort{
		{Field: "price", Direction: grid.Desc},
		{Field: "name", Direction: grid.Asc},
		{Field: "stock", Direction: grid.Desc},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseSorting() = %v, want %v", got, want)
	}

	if _, err := parseSorting([]string{"price:sideways"}); err == nil {
		t.Error("parseSorting(price:sideways) error = nil, want error")
	}
}
