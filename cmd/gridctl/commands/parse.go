package commands

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// rangeSep separates the bounds of a range filter: "10..20", "..20", "10..".
const rangeSep = ".."

// parseFilters turns repeated key=value flags into filter values shaped by
// each column's type.
func parseFilters(schema *grid.Schema, specs []string) (map[string]any, error) {
	out := make(map[string]any, len(specs))
	for _, spec := range specs {
		key, raw, ok := strings.Cut(spec, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: want key=value", spec)
		}
		col, known := schema.Column(key)
		if !known && schema.Len() > 0 {
			return nil, fmt.Errorf("invalid filter %q: unknown column %s", spec, key)
		}
		if known && !col.Filterable {
			return nil, fmt.Errorf("invalid filter %q: column %s is not filterable", spec, key)
		}
		if !known {
			col = grid.ColumnDefinition{Key: key, Type: grid.FieldText}
		}
		v, err := parseFilterValue(col, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", spec, err)
		}
		out[key] = v
	}
	return out, nil
}

func parseFilterValue(col grid.ColumnDefinition, raw string) (any, error) {
	switch {
	case col.Type.Numeric():
		lo, hi, isRange := strings.Cut(raw, rangeSep)
		if !isRange {
			hi = lo
		}
		var r grid.NumberRange
		if lo != "" {
			f, ok := grid.ToFloat(lo)
			if !ok {
				return nil, fmt.Errorf("invalid number %q", lo)
			}
			r.Min = &f
		}
		if hi != "" {
			f, ok := grid.ToFloat(hi)
			if !ok {
				return nil, fmt.Errorf("invalid number %q", hi)
			}
			r.Max = &f
		}
		if r.Min == nil && r.Max == nil {
			return nil, fmt.Errorf("empty range")
		}
		return r, nil

	case col.Type.Temporal():
		from, to, isRange := strings.Cut(raw, rangeSep)
		if !isRange {
			to = from
		}
		var r grid.DateRange
		if from != "" {
			t, ok := grid.ToTime(from)
			if !ok {
				return nil, fmt.Errorf("invalid date %q", from)
			}
			r.From = &t
		}
		if to != "" {
			t, ok := grid.ToTime(to)
			if !ok {
				return nil, fmt.Errorf("invalid date %q", to)
			}
			r.To = &t
		}
		if r.From == nil && r.To == nil {
			return nil, fmt.Errorf("empty range")
		}
		return r, nil

	case col.Type == grid.FieldMultiSelect:
		return splitList(raw), nil

	case col.Type == grid.FieldBoolean:
		b, ok := grid.ToBool(raw)
		if !ok {
			return nil, fmt.Errorf("invalid boolean %q", raw)
		}
		return b, nil
	}
	return raw, nil
}

// parseCellValue converts command line input for one cell into the typed
// value the column stores. Invalid input is passed through as a string so
// validation reports it against the column.
func parseCellValue(col grid.ColumnDefinition, raw string) (any, error) {
	if col.Parse != nil {
		return col.Parse(raw)
	}
	if raw == "" {
		return nil, nil
	}
	switch {
	case col.Type.Numeric():
		if f, ok := grid.ToFloat(raw); ok {
			return f, nil
		}
	case col.Type == grid.FieldBoolean:
		if b, ok := grid.ToBool(raw); ok {
			return b, nil
		}
	case col.Type == grid.FieldMultiSelect:
		return splitList(raw), nil
	}
	return raw, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseSorting reads repeated --sort flags, each of which may hold a comma
// separated list.
func parseSorting(specs []string) ([]grid.Sort, error) {
	var out []grid.Sort
	for _, spec := range specs {
		sorting, err := grid.ParseSort(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, sorting...)
	}
	return out, nil
}
