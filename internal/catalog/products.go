// Package catalog defines the products grid served by the demo server: its
// columns, validation rules, and seed rows.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// ProductsKey is the registry key of the products grid.
const ProductsKey = "products"

// Category and status options.
var (
	Categories = []grid.Option{
		{Value: "hardware", Label: "Hardware"},
		{Value: "software", Label: "Software"},
		{Value: "services", Label: "Services"},
		{Value: "accessories", Label: "Accessories"},
	}
	Statuses = []grid.Option{
		{Value: "active", Label: "Active"},
		{Value: "draft", Label: "Draft"},
		{Value: "archived", Label: "Archived"},
	}
	Tags = []grid.Option{
		{Value: "new", Label: "New"},
		{Value: "sale", Label: "Sale"},
		{Value: "bestseller", Label: "Bestseller"},
		{Value: "eco", Label: "Eco"},
	}
)

// ProductColumns is the products schema.
var ProductColumns = grid.StaticSchema{
	{Key: "id", Header: "ID", Type: grid.FieldText, Sortable: true},
	{Key: "sku", Header: "SKU", Type: grid.FieldText, Sortable: true, Filterable: true, Searchable: true,
		Rules: []grid.Rule{grid.Required(), grid.Pattern(`^[A-Z]{3}-\d{4}$`)}},
	{Key: "name", Header: "Name", Type: grid.FieldText, Sortable: true, Filterable: true, Editable: true, Searchable: true,
		Rules: []grid.Rule{grid.Required(), grid.MaxLength(80)}},
	{Key: "category", Header: "Category", Type: grid.FieldSelect, Sortable: true, Filterable: true, Editable: true,
		Options: Categories},
	{Key: "price", Header: "Price", Type: grid.FieldCurrency, Sortable: true, Filterable: true, Editable: true,
		Rules: []grid.Rule{grid.Required(), grid.Min(0)}},
	{Key: "stock", Header: "Stock", Type: grid.FieldNumber, Sortable: true, Filterable: true, Editable: true,
		Rules: []grid.Rule{grid.Min(0), grid.Expr("int(value) == value", "stock must be a whole number")}},
	{Key: "status", Header: "Status", Type: grid.FieldSelect, Sortable: true, Filterable: true, Editable: true,
		Options: Statuses},
	{Key: "tags", Header: "Tags", Type: grid.FieldMultiSelect, Filterable: true, Editable: true,
		Options: Tags},
	{Key: "featured", Header: "Featured", Type: grid.FieldBoolean, Sortable: true, Filterable: true, Editable: true},
	{Key: "released", Header: "Released", Type: grid.FieldDate, Sortable: true, Filterable: true, Editable: true},
	{Key: "supplierEmail", Header: "Supplier", Type: grid.FieldEmail, Editable: true, Searchable: true},
	{Key: "website", Header: "Website", Type: grid.FieldURL, Editable: true,
		Format: func(v any) string { return grid.Stringify(v) }},
}

// ProductSchema loads ProductColumns.
func ProductSchema() *grid.Schema {
	s, err := grid.LoadSchema(context.Background(), ProductColumns)
	if err != nil {
		// ProductColumns is static; a failure is a programming error.
		panic(fmt.Sprintf("catalog: %v", err))
	}
	return s
}

var (
	adjectives = []string{"Compact", "Rugged", "Smart", "Classic", "Ultra", "Silent"}
	nouns      = []string{"Keyboard", "Monitor", "Router", "License", "Dock", "Headset", "Backup Plan", "Cable", "Webcam", "Tablet"}
)

// SeedProducts returns n deterministic product rows.
func SeedProducts(n int) []grid.Row {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := make([]grid.Row, n)
	for i := range rows {
		cat := Categories[i%len(Categories)].Value
		status := Statuses[i%len(Statuses)].Value
		var tags []string
		if i%4 == 0 {
			tags = append(tags, "new")
		}
		if i%5 == 0 {
			tags = append(tags, "sale")
		}
		if i%7 == 0 {
			tags = append(tags, "bestseller")
		}
		rows[i] = grid.Row{
			"id":            fmt.Sprintf("p-%03d", i+1),
			"sku":           fmt.Sprintf("%s-%04d", skuPrefix(cat), 1000+i),
			"name":          fmt.Sprintf("%s %s", adjectives[i%len(adjectives)], nouns[i%len(nouns)]),
			"category":      cat,
			"price":         float64(int(9.99*float64(i%17+1)*100)) / 100,
			"stock":         float64((i * 37) % 250),
			"status":        status,
			"tags":          tags,
			"featured":      i%6 == 0,
			"released":      base.AddDate(0, 0, i*9).Format("2006-01-02"),
			"supplierEmail": fmt.Sprintf("sales%d@supplier%d.example.com", i%3+1, i%5+1),
			"website":       fmt.Sprintf("https://supplier%d.example.com/p/%d", i%5+1, i+1),
		}
	}
	return rows
}

func skuPrefix(category string) string {
	switch category {
	case "hardware":
		return "HWR"
	case "software":
		return "SFT"
	case "services":
		return "SVC"
	}
	return "ACC"
}

// RegisterProducts adds the products grid backed by src to reg.
func RegisterProducts(reg *grid.Registry, src grid.DataSource) {
	reg.Register(grid.Definition{
		Key:         ProductsKey,
		Label:       "Products",
		Description: "Product catalog with pricing and stock levels",
		Source:      src,
		Schema:      ProductColumns,
		RowID:       grid.DefaultRowID,
	})
}
