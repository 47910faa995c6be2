package grid

import (
	"context"
	"fmt"
)

// FieldType is the display and filter type of a column.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldDateTime    FieldType = "datetime"
	FieldBoolean     FieldType = "boolean"
	FieldCurrency    FieldType = "currency"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multi-select"
	FieldEmail       FieldType = "email"
	FieldURL         FieldType = "url"
	FieldCustom      FieldType = "custom"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDate, FieldDateTime, FieldBoolean, FieldCurrency,
		FieldSelect, FieldMultiSelect, FieldEmail, FieldURL, FieldCustom:
		return true
	}
	return false
}

// Numeric reports whether values of this type filter by NumberRange.
func (t FieldType) Numeric() bool {
	return t == FieldNumber || t == FieldCurrency
}

// Temporal reports whether values of this type filter by DateRange.
func (t FieldType) Temporal() bool {
	return t == FieldDate || t == FieldDateTime
}

// Option is one allowed value of a select or multi-select column.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ColumnDefinition is the static metadata of one column.
type ColumnDefinition struct {
	Key        string    `json:"key"`
	Header     string    `json:"header"`
	Type       FieldType `json:"type"`
	Sortable   bool      `json:"sortable,omitempty"`
	Filterable bool      `json:"filterable,omitempty"`
	Editable   bool      `json:"editable,omitempty"`
	Searchable bool      `json:"searchable,omitempty"`
	Options    []Option  `json:"options,omitempty"`
	Rules      []Rule    `json:"rules,omitempty"`

	// Format renders a value for display or export. Optional.
	Format func(any) string `json:"-"`
	// Parse converts user input into a typed value. Optional.
	Parse func(string) (any, error) `json:"-"`
}

// HasOption reports whether v is one of the column's option values.
func (c ColumnDefinition) HasOption(v string) bool {
	for _, o := range c.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// SchemaProvider supplies the ordered column definitions of a grid.
type SchemaProvider interface {
	Columns(ctx context.Context) ([]ColumnDefinition, error)
}

// StaticSchema is a SchemaProvider backed by a fixed slice.
type StaticSchema []ColumnDefinition

// Columns implements SchemaProvider.
func (s StaticSchema) Columns(context.Context) ([]ColumnDefinition, error) {
	return append([]ColumnDefinition(nil), s...), nil
}

// Schema is the immutable, indexed set of columns of one grid session.
type Schema struct {
	columns []ColumnDefinition
	byKey   map[string]int
}

// LoadSchema reads the provider once and indexes the result.
// Duplicate keys, empty keys, and unknown types are rejected.
func LoadSchema(ctx context.Context, p SchemaProvider) (*Schema, error) {
	if p == nil {
		return &Schema{byKey: map[string]int{}}, nil
	}
	cols, err := p.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return NewSchema(cols)
}

// NewSchema indexes an ordered list of columns.
func NewSchema(cols []ColumnDefinition) (*Schema, error) {
	s := &Schema{
		columns: make([]ColumnDefinition, len(cols)),
		byKey:   make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.Key == "" {
			return nil, fmt.Errorf("column %d: empty key", i)
		}
		if _, dup := s.byKey[c.Key]; dup {
			return nil, fmt.Errorf("column %q: duplicate key", c.Key)
		}
		if c.Type == "" {
			c.Type = FieldText
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("column %q: unknown type %q", c.Key, c.Type)
		}
		if c.Header == "" {
			c.Header = c.Key
		}
		c.Options = append([]Option(nil), c.Options...)
		c.Rules = append([]Rule(nil), c.Rules...)
		s.columns[i] = c
		s.byKey[c.Key] = i
	}
	return s, nil
}

// Columns returns a copy of the ordered columns.
func (s *Schema) Columns() []ColumnDefinition {
	return append([]ColumnDefinition(nil), s.columns...)
}

// Column returns the definition for key.
func (s *Schema) Column(key string) (ColumnDefinition, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return ColumnDefinition{}, false
	}
	return s.columns[i], true
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.columns) }

// Keys returns column keys in schema order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.columns))
	for i, c := range s.columns {
		keys[i] = c.Key
	}
	return keys
}

// Searchable returns the keys of columns included in free-text search.
// When no column opts in, every text-like column is searchable.
func (s *Schema) Searchable() []string {
	var keys []string
	for _, c := range s.columns {
		if c.Searchable {
			keys = append(keys, c.Key)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	for _, c := range s.columns {
		switch c.Type {
		case FieldText, FieldEmail, FieldURL, FieldSelect:
			keys = append(keys, c.Key)
		}
	}
	return keys
}
