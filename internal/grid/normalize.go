package grid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Accepted response field names, in priority order. The first alias holding a
// usable value wins for each family.
var (
	rowsAliases       = []string{"items", "data", "results"}
	totalAliases      = []string{"total", "totalCount", "count"}
	pageAliases       = []string{"page", "currentPage"}
	pageSizeAliases   = []string{"limit", "pageSize", "perPage"}
	totalPagesAliases = []string{"totalPages", "pageCount"}

	// Envelopes that commonly nest the counters.
	metaKeys = []string{"meta", "pagination"}
)

// NormalizeResult converts a decoded backend response into a Result.
//
// Page and page size fall back to the request parameters when the response
// omits them. A missing total is estimated as everything before this page plus
// the rows on it. An explicit total page count overrides the computed one.
func NormalizeResult(raw map[string]any, p Params) (*Result, error) {
	rawRows, ok := lookup(raw, rowsAliases)
	if !ok {
		return nil, fmt.Errorf("normalize response: no rows field (want one of %v)", rowsAliases)
	}
	rows, err := toRows(rawRows)
	if err != nil {
		return nil, fmt.Errorf("normalize response: %w", err)
	}

	page := p.Pagination.Page
	if v, ok := lookupNumber(raw, pageAliases); ok {
		page = v
	}
	pageSize := p.Pagination.PageSize
	if v, ok := lookupNumber(raw, pageSizeAliases); ok && v > 0 {
		pageSize = v
	}
	if page < 1 {
		page = 1
	}

	total, ok := lookupNumber(raw, totalAliases)
	if !ok {
		total = (page-1)*pageSize + len(rows)
	}

	res := NewResult(rows, total, page, pageSize)
	if v, ok := lookupNumber(raw, totalPagesAliases); ok {
		res.TotalPages = v
	}
	return res, nil
}

// DecodeResult reads a JSON response body and normalizes it. A bare JSON
// array is treated as a single unpaginated page.
func DecodeResult(r io.Reader, p Params) (*Result, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	body = bytes.TrimSpace(body)

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if len(body) > 0 && body[0] == '[' {
		var items []any
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		rows, err := toRows(items)
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		size := p.Pagination.PageSize
		if size < len(rows) || size < 1 {
			size = len(rows)
		}
		return NewResult(rows, len(rows), 1, size), nil
	}

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return NormalizeResult(raw, p)
}

func lookup(raw map[string]any, aliases []string) (any, bool) {
	for _, k := range aliases {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// lookupNumber searches the top level first, then the meta envelopes, taking
// the first alias that holds a number. A present but non-numeric value such as
// "n/a" or null is skipped like an absent one.
func lookupNumber(raw map[string]any, aliases []string) (int, bool) {
	if n, ok := firstNumber(raw, aliases); ok {
		return n, true
	}
	for _, mk := range metaKeys {
		meta, ok := raw[mk].(map[string]any)
		if !ok {
			continue
		}
		if n, ok := firstNumber(meta, aliases); ok {
			return n, true
		}
	}
	return 0, false
}

func firstNumber(m map[string]any, aliases []string) (int, bool) {
	for _, a := range aliases {
		v, ok := m[a]
		if !ok {
			continue
		}
		if n, ok := ToInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

func toRows(v any) ([]Row, error) {
	switch items := v.(type) {
	case []Row:
		return items, nil
	case []map[string]any:
		rows := make([]Row, len(items))
		for i, m := range items {
			rows[i] = Row(m)
		}
		return rows, nil
	case []any:
		rows := make([]Row, 0, len(items))
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("row %d is %T, want object", i, item)
			}
			rows = append(rows, Row(m))
		}
		return rows, nil
	}
	return nil, fmt.Errorf("rows field is %T, want array", v)
}
