package grid

import (
	"context"
	"fmt"
	"maps"
	"strings"
)

// Transformer translates between wire records and domain rows.
// For every field present in both shapes, ToDomain(ToAPI(r)) must give the
// field back unchanged.
type Transformer interface {
	ToDomain(dto Row) (Row, error)
	ToAPI(row Row) (Row, error)
}

// IdentityTransformer passes records through unchanged.
type IdentityTransformer struct{}

func (IdentityTransformer) ToDomain(dto Row) (Row, error) { return dto.Clone(), nil }
func (IdentityTransformer) ToAPI(row Row) (Row, error)    { return row.Clone(), nil }

// Codec converts one field's value between its wire and domain form.
// Either function may be nil.
type Codec struct {
	Decode func(any) (any, error)
	Encode func(any) (any, error)
}

// FieldMapping maps a domain key to a dotted API path such as
// "pricing.amount".
type FieldMapping struct {
	Domain string
	API    string
	Codec  Codec
}

// FieldMap is a Transformer driven by a list of field mappings.
type FieldMap struct {
	mappings []FieldMapping
	byDomain map[string]FieldMapping
	byAPI    map[string]FieldMapping

	// Passthrough copies unmapped top-level keys unchanged in both directions.
	Passthrough bool
}

// NewFieldMap builds a FieldMap. An empty API path maps to the domain key.
func NewFieldMap(mappings ...FieldMapping) *FieldMap {
	fm := &FieldMap{
		byDomain: make(map[string]FieldMapping, len(mappings)),
		byAPI:    make(map[string]FieldMapping, len(mappings)),
	}
	for _, m := range mappings {
		if m.API == "" {
			m.API = m.Domain
		}
		fm.mappings = append(fm.mappings, m)
		fm.byDomain[m.Domain] = m
		fm.byAPI[m.API] = m
	}
	return fm
}

// APIField returns the API path for a domain key.
func (fm *FieldMap) APIField(domain string) string {
	if m, ok := fm.byDomain[domain]; ok {
		return m.API
	}
	return domain
}

func (fm *FieldMap) ToDomain(dto Row) (Row, error) {
	out := make(Row, len(fm.mappings))
	for _, m := range fm.mappings {
		v, ok := getPath(dto, m.API)
		if !ok {
			continue
		}
		if m.Codec.Decode != nil {
			dv, err := m.Codec.Decode(v)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", m.API, err)
			}
			v = dv
		}
		out[m.Domain] = v
	}
	if fm.Passthrough {
		for k, v := range dto {
			if _, mapped := fm.byDomain[k]; mapped {
				continue
			}
			if fm.ownsRoot(k) {
				continue
			}
			out[k] = v
		}
	}
	return out, nil
}

func (fm *FieldMap) ToAPI(row Row) (Row, error) {
	out := make(Row, len(row))
	keys := sortedKeys(row)
	if fm.Passthrough {
		for _, k := range keys {
			if _, mapped := fm.byDomain[k]; !mapped {
				out[k] = row[k]
			}
		}
	}
	for _, k := range keys {
		v := row[k]
		m, ok := fm.byDomain[k]
		if !ok {
			continue
		}
		if m.Codec.Encode != nil {
			ev, err := m.Codec.Encode(v)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", k, err)
			}
			v = ev
		}
		setPath(out, m.API, v)
	}
	return out, nil
}

// ownsRoot reports whether key is the first segment of a mapped API path.
func (fm *FieldMap) ownsRoot(key string) bool {
	for api := range fm.byAPI {
		root, _, _ := strings.Cut(api, ".")
		if root == key {
			return true
		}
	}
	return false
}

func getPath(r map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := r[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return v, true
	}
	switch child := v.(type) {
	case map[string]any:
		return getPath(child, rest)
	case Row:
		return getPath(child, rest)
	}
	return nil, false
}

// setPath writes v at path. Intermediate maps are copied before the write,
// since a passthrough value may still be shared with the caller's row.
func setPath(r map[string]any, path string, v any) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		r[head] = v
		return
	}
	var child map[string]any
	switch c := r[head].(type) {
	case map[string]any:
		child = maps.Clone(c)
	case Row:
		child = maps.Clone(map[string]any(c))
	}
	if child == nil {
		child = map[string]any{}
	}
	r[head] = child
	setPath(child, rest, v)
}

// fieldNamer is implemented by transformers that rename fields.
type fieldNamer interface {
	APIField(domain string) string
}

// Repository decorates a DataSource with a Transformer. Fetched rows are
// converted to domain rows; created and updated rows go out in API form.
// Sort fields and filter keys are renamed to their API paths.
//
// BulkDelete and BatchUpdate use the source's native operation when it has
// one and fall back to one request per row otherwise.
type Repository struct {
	source DataSource
	tf     Transformer
}

// NewRepository wraps source. A nil transformer means IdentityTransformer.
func NewRepository(source DataSource, tf Transformer) *Repository {
	if tf == nil {
		tf = IdentityTransformer{}
	}
	return &Repository{source: source, tf: tf}
}

// Source returns the wrapped data source.
func (r *Repository) Source() DataSource { return r.source }

// Capabilities reports the wrapped source's capabilities.
func (r *Repository) Capabilities() Capabilities { return CapabilitiesOf(r.source) }

func (r *Repository) apiField(domain string) string {
	if n, ok := r.tf.(fieldNamer); ok {
		return n.APIField(domain)
	}
	return domain
}

func (r *Repository) Fetch(ctx context.Context, p Params) (*Result, error) {
	ap := Params{Pagination: p.Pagination, Search: p.Search}
	for _, s := range p.Sorting {
		ap.Sorting = append(ap.Sorting, Sort{Field: r.apiField(s.Field), Direction: s.Direction})
	}
	if len(p.Filters) > 0 {
		ap.Filters = make(map[string]any, len(p.Filters))
		for k, v := range p.Filters {
			ap.Filters[r.apiField(k)] = v
		}
	}

	res, err := r.source.Fetch(ctx, ap)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(res.Rows))
	for i, dto := range res.Rows {
		row, err := r.tf.ToDomain(dto)
		if err != nil {
			return nil, fmt.Errorf("transform row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	out := *res
	out.Rows = rows
	return &out, nil
}

func (r *Repository) Create(ctx context.Context, row Row) (Row, error) {
	dto, err := r.tf.ToAPI(row)
	if err != nil {
		return nil, err
	}
	created, err := Create(ctx, r.source, dto)
	if err != nil {
		return nil, err
	}
	return r.tf.ToDomain(created)
}

func (r *Repository) Update(ctx context.Context, id string, changes Row) (Row, error) {
	dto, err := r.tf.ToAPI(changes)
	if err != nil {
		return nil, err
	}
	updated, err := Update(ctx, r.source, id, dto)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, nil
	}
	return r.tf.ToDomain(updated)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return Delete(ctx, r.source, id)
}

func (r *Repository) BulkDelete(ctx context.Context, ids []string) (BulkResult, error) {
	if b, ok := r.source.(BulkDeleter); ok {
		return b.BulkDelete(ctx, ids)
	}
	if _, ok := r.source.(Deleter); !ok {
		return BulkResult{}, &UnsupportedError{Op: "bulkDelete"}
	}
	return sequentialDelete(ctx, r, ids)
}

func (r *Repository) BatchUpdate(ctx context.Context, updates []RowUpdate) (BulkResult, error) {
	if b, ok := r.source.(BatchUpdater); ok {
		wire := make([]RowUpdate, 0, len(updates))
		var res BulkResult
		for _, up := range updates {
			dto, err := r.tf.ToAPI(up.Changes)
			if err != nil {
				res.addFailure(up.ID, err)
				continue
			}
			wire = append(wire, RowUpdate{ID: up.ID, Changes: dto})
		}
		if len(wire) == 0 {
			return res, nil
		}
		native, err := b.BatchUpdate(ctx, wire)
		if err != nil {
			return native, err
		}
		native.Errors = append(native.Errors, res.Errors...)
		return native, nil
	}
	if _, ok := r.source.(Updater); !ok {
		return BulkResult{}, &UnsupportedError{Op: "batchUpdate"}
	}
	return sequentialUpdate(ctx, r, updates)
}
