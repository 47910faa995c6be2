package grid

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const queryDateLayout = "2006-01-02"

// formatQueryTime writes UTC midnights as plain dates and anything else as
// RFC 3339 so the time of day and zone survive the round trip.
func formatQueryTime(t time.Time) string {
	if t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(queryDateLayout)
	}
	return t.Format(time.RFC3339Nano)
}

// Query parameter names used by EncodeQuery and DecodeQuery.
const (
	QueryPage   = "page"
	QueryLimit  = "limit"
	QuerySort   = "sort"
	QuerySearch = "search"
)

// EncodeQuery translates fetch parameters into URL query values:
//
//	page=2&limit=25&sort=price:desc,name:asc&search=lamp
//	status=active               scalar filter
//	price_min=10&price_max=20   NumberRange
//	created_from=2024-01-01     DateRange
//	tags=a&tags=b               multi-select
func EncodeQuery(p Params) url.Values {
	q := url.Values{}
	if p.Pagination.Page > 0 {
		q.Set(QueryPage, strconv.Itoa(p.Pagination.Page))
	}
	if p.Pagination.PageSize > 0 {
		q.Set(QueryLimit, strconv.Itoa(p.Pagination.PageSize))
	}
	if len(p.Sorting) > 0 {
		parts := make([]string, len(p.Sorting))
		for i, s := range p.Sorting {
			dir := s.Direction
			if dir == "" {
				dir = Asc
			}
			parts[i] = s.Field + ":" + string(dir)
		}
		q.Set(QuerySort, strings.Join(parts, ","))
	}
	if p.Search != "" {
		q.Set(QuerySearch, p.Search)
	}

	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		encodeFilter(q, k, p.Filters[k])
	}
	return q
}

func encodeFilter(q url.Values, key string, v any) {
	switch f := v.(type) {
	case nil:
	case NumberRange:
		if f.Min != nil {
			q.Set(key+"_min", strconv.FormatFloat(*f.Min, 'f', -1, 64))
		}
		if f.Max != nil {
			q.Set(key+"_max", strconv.FormatFloat(*f.Max, 'f', -1, 64))
		}
	case *NumberRange:
		if f != nil {
			encodeFilter(q, key, *f)
		}
	case DateRange:
		if f.From != nil {
			q.Set(key+"_from", formatQueryTime(*f.From))
		}
		if f.To != nil {
			q.Set(key+"_to", formatQueryTime(*f.To))
		}
	case *DateRange:
		if f != nil {
			encodeFilter(q, key, *f)
		}
	case time.Time:
		q.Set(key, formatQueryTime(f))
	case bool:
		q.Set(key, strconv.FormatBool(f))
	case []string:
		for _, s := range f {
			q.Add(key, s)
		}
	case []any:
		for _, s := range f {
			q.Add(key, Stringify(s))
		}
	default:
		q.Set(key, Stringify(v))
	}
}

// DecodeQuery is the inverse of EncodeQuery. Filters are only read for
// filterable schema columns, shaped by column type. Missing pagination falls
// back to defaults.
func DecodeQuery(q url.Values, schema *Schema, defaults Pagination) (Params, error) {
	p := Params{Pagination: defaults, Filters: map[string]any{}}

	if v := firstOf(q, QueryPage, "currentPage"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: page %q", ErrInvalidPagination, v)
		}
		p.Pagination.Page = n
	}
	if v := firstOf(q, QueryLimit, "pageSize", "perPage"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: limit %q", ErrInvalidPagination, v)
		}
		p.Pagination.PageSize = n
	}
	if p.Pagination.Page < 1 {
		p.Pagination.Page = 1
	}

	if v := q.Get(QuerySort); v != "" {
		sorting, err := ParseSort(v)
		if err != nil {
			return p, err
		}
		p.Sorting = sorting
	}
	p.Search = strings.TrimSpace(firstOf(q, QuerySearch, "q"))

	if schema == nil {
		return p, nil
	}

	var errs ValidationErrors
	for _, col := range schema.Columns() {
		if !col.Filterable {
			continue
		}
		v, err := decodeFilter(q, col)
		if err != nil {
			errs = append(errs, ValidationError{Column: col.Key, Message: err.Error()})
			continue
		}
		if v != nil {
			p.Filters[col.Key] = v
		}
	}
	if len(errs) > 0 {
		return p, errs
	}
	return p, nil
}

// ParseSort parses "field:dir,field:dir". A bare field sorts ascending and a
// leading "-" sorts descending.
func ParseSort(s string) ([]Sort, error) {
	var out []Sort
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, found := strings.Cut(part, ":")
		srt := Sort{Field: field, Direction: Asc}
		if !found && strings.HasPrefix(field, "-") {
			srt.Field = strings.TrimPrefix(field, "-")
			srt.Direction = Desc
		}
		if found {
			switch Direction(strings.ToLower(dir)) {
			case Asc:
			case Desc:
				srt.Direction = Desc
			default:
				return nil, fmt.Errorf("invalid sort direction %q for %s", dir, field)
			}
		}
		out = append(out, srt)
	}
	return out, nil
}

func decodeFilter(q url.Values, col ColumnDefinition) (any, error) {
	key := col.Key
	switch {
	case col.Type.Numeric():
		var r NumberRange
		if v := q.Get(key + "_min"); v != "" {
			f, ok := ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("invalid number %q", v)
			}
			r.Min = &f
		}
		if v := q.Get(key + "_max"); v != "" {
			f, ok := ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("invalid number %q", v)
			}
			r.Max = &f
		}
		if v := q.Get(key); v != "" {
			f, ok := ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("invalid number %q", v)
			}
			r.Min, r.Max = &f, &f
		}
		if r.Min == nil && r.Max == nil {
			return nil, nil
		}
		return r, nil

	case col.Type.Temporal():
		var r DateRange
		if v := q.Get(key + "_from"); v != "" {
			t, ok := ToTime(v)
			if !ok {
				return nil, fmt.Errorf("invalid date %q", v)
			}
			r.From = &t
		}
		if v := q.Get(key + "_to"); v != "" {
			t, ok := ToTime(v)
			if !ok {
				return nil, fmt.Errorf("invalid date %q", v)
			}
			r.To = &t
		}
		if r.From == nil && r.To == nil {
			return nil, nil
		}
		return r, nil

	case col.Type == FieldMultiSelect:
		vals := q[key]
		if len(vals) == 0 {
			return nil, nil
		}
		return append([]string(nil), vals...), nil

	case col.Type == FieldBoolean:
		v := q.Get(key)
		if v == "" {
			return nil, nil
		}
		b, ok := ToBool(v)
		if !ok {
			return nil, fmt.Errorf("invalid boolean %q", v)
		}
		return b, nil
	}

	if v := q.Get(key); v != "" {
		return v, nil
	}
	return nil, nil
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}
