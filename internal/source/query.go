package source

import (
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// Apply filters, searches, sorts, and pages rows in process.
// The input slice is not modified.
func Apply(schema *grid.Schema, rows []grid.Row, p grid.Params) *grid.Result {
	matched := make([]grid.Row, 0, len(rows))
	search := strings.ToLower(strings.TrimSpace(p.Search))
	searchKeys := searchColumns(schema, rows)
	for _, r := range rows {
		if !matchFilters(schema, r, p.Filters) {
			continue
		}
		if search != "" && !matchSearch(r, searchKeys, search) {
			continue
		}
		matched = append(matched, r)
	}

	sortRows(schema, matched, p.Sorting)

	page, size := p.Pagination.Page, p.Pagination.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = grid.DefaultPageSize
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]grid.Row, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, r.Clone())
	}
	return grid.NewResult(out, len(matched), page, size)
}

func column(schema *grid.Schema, key string) grid.ColumnDefinition {
	if schema != nil {
		if col, ok := schema.Column(key); ok {
			return col
		}
	}
	return grid.ColumnDefinition{Key: key, Type: grid.FieldText}
}

func matchFilters(schema *grid.Schema, r grid.Row, filters map[string]any) bool {
	for key, f := range filters {
		if !MatchFilter(column(schema, key), r[key], f) {
			return false
		}
	}
	return true
}

// MatchFilter reports whether a cell value passes one column filter. The
// filter's shape decides the comparison: ranges bound numbers and dates,
// lists match any member, booleans compare exactly, and scalars use
// case-insensitive contains for text columns and equality otherwise.
func MatchFilter(col grid.ColumnDefinition, value, filter any) bool {
	switch f := filter.(type) {
	case nil:
		return true
	case grid.NumberRange:
		v, ok := grid.ToFloat(value)
		if !ok {
			return false
		}
		if f.Min != nil && v < *f.Min {
			return false
		}
		if f.Max != nil && v > *f.Max {
			return false
		}
		return true
	case *grid.NumberRange:
		return f == nil || MatchFilter(col, value, *f)
	case grid.DateRange:
		v, ok := grid.ToTime(value)
		if !ok {
			return false
		}
		if f.From != nil && v.Before(*f.From) {
			return false
		}
		if f.To != nil && !v.Before(inclusiveEnd(*f.To)) {
			return false
		}
		return true
	case *grid.DateRange:
		return f == nil || MatchFilter(col, value, *f)
	case []string, []any:
		want := grid.ToStrings(f)
		if len(want) == 0 {
			return true
		}
		for _, have := range grid.ToStrings(value) {
			for _, w := range want {
				if strings.EqualFold(have, w) {
					return true
				}
			}
		}
		return false
	case bool:
		b, ok := grid.ToBool(value)
		return ok && b == f
	}

	if col.Type.Numeric() {
		want, ok1 := grid.ToFloat(filter)
		have, ok2 := grid.ToFloat(value)
		return ok1 && ok2 && want == have
	}
	want := strings.ToLower(grid.Stringify(filter))
	have := strings.ToLower(grid.Stringify(value))
	switch col.Type {
	case grid.FieldText, grid.FieldEmail, grid.FieldURL, grid.FieldCustom:
		return strings.Contains(have, want)
	case grid.FieldMultiSelect:
		for _, s := range grid.ToStrings(value) {
			if strings.EqualFold(s, want) {
				return true
			}
		}
		return false
	}
	return have == want
}

// inclusiveEnd turns a date-only upper bound into the start of the next day.
func inclusiveEnd(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.AddDate(0, 0, 1)
	}
	return t.Add(time.Nanosecond)
}

func searchColumns(schema *grid.Schema, rows []grid.Row) []string {
	if schema != nil && schema.Len() > 0 {
		return schema.Searchable()
	}
	seen := map[string]struct{}{}
	var keys []string
	for _, r := range rows {
		for k, v := range r {
			if _, ok := v.(string); !ok {
				continue
			}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func matchSearch(r grid.Row, keys []string, q string) bool {
	for _, k := range keys {
		if strings.Contains(strings.ToLower(grid.Stringify(r[k])), q) {
			return true
		}
	}
	return false
}

func sortRows(schema *grid.Schema, rows []grid.Row, sorting []grid.Sort) {
	if len(sorting) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sorting {
			c := compareValues(column(schema, s.Field), rows[i][s.Field], rows[j][s.Field])
			if c == 0 {
				continue
			}
			if s.Direction == grid.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders two cells of the same column. Nil sorts first.
func compareValues(col grid.ColumnDefinition, a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if col.Type.Numeric() || col.Type == grid.FieldNumber {
		fa, oka := grid.ToFloat(a)
		fb, okb := grid.ToFloat(b)
		if oka && okb {
			return cmpFloat(fa, fb)
		}
	}
	if col.Type.Temporal() {
		ta, oka := grid.ToTime(a)
		tb, okb := grid.ToTime(b)
		if oka && okb {
			return ta.Compare(tb)
		}
	}
	if col.Type == grid.FieldBoolean {
		ba, _ := grid.ToBool(a)
		bb, _ := grid.ToBool(b)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	// Untyped numbers still sort numerically.
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			return cmpFloat(fa, fb)
		}
	}
	return strings.Compare(strings.ToLower(grid.Stringify(a)), strings.ToLower(grid.Stringify(b)))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
