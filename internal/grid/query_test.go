package grid

import (
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestEncodeQuery(t *testing.T) {
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	p := Params{
		Pagination: Pagination{Page: 2, PageSize: 25},
		Sorting:    []Sort{{Field: "price", Direction: Desc}, {Field: "name"}},
		Search:     "lamp",
		Filters: map[string]any{
			"status":  "active",
			"inStock": false,
			"price":   NumberRange{Min: f64(10), Max: f64(20.5)},
			"created": DateRange{From: &from},
			"tags":    []string{"red", "blue"},
		},
	}

	q := EncodeQuery(p)

	want := url.Values{
		"page":         {"2"},
		"limit":        {"25"},
		"sort":         {"price:desc,name:asc"},
		"search":       {"lamp"},
		"status":       {"active"},
		"inStock":      {"false"},
		"price_min":    {"10"},
		"price_max":    {"20.5"},
		"created_from": {"2024-01-15"},
		"tags":         {"red", "blue"},
	}
	if !reflect.DeepEqual(q, want) {
		t.Errorf("EncodeQuery =\n%v\nwant\n%v", q, want)
	}
}

func querySchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema([]ColumnDefinition{
		{Key: "name", Type: FieldText, Filterable: true},
		{Key: "status", Type: FieldSelect, Filterable: true},
		{Key: "price", Type: FieldCurrency, Filterable: true},
		{Key: "created", Type: FieldDate, Filterable: true},
		{Key: "updated", Type: FieldDateTime, Filterable: true},
		{Key: "tags", Type: FieldMultiSelect, Filterable: true},
		{Key: "inStock", Type: FieldBoolean, Filterable: true},
		{Key: "secret", Type: FieldText},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func TestDecodeQuery_InverseOfEncode(t *testing.T) {
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	after := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	before := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	in := Params{
		Pagination: Pagination{Page: 3, PageSize: 10},
		Sorting:    []Sort{{Field: "price", Direction: Desc}},
		Search:     "lamp",
		Filters: map[string]any{
			"status":  "active",
			"inStock": false,
			"price":   NumberRange{Min: f64(10)},
			"created": DateRange{From: &from},
			"updated": DateRange{From: &after, To: &before},
			"tags":    []string{"red", "blue"},
		},
	}

	out, err := DecodeQuery(EncodeQuery(in), querySchema(t), Pagination{Page: 1, PageSize: 25})
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("DecodeQuery(EncodeQuery(p)) =\n%+v\nwant\n%+v", out, in)
	}
}

func TestEncodeQuery_TimeBounds(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"utc midnight", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2024-01-01"},
		{"time of day", time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC), "2024-01-01T15:30:00Z"},
		{"sub-second", time.Date(2024, 1, 1, 15, 30, 0, 500, time.UTC), "2024-01-01T15:30:00.0000005Z"},
		{"midnight in another zone", time.Date(2024, 1, 1, 0, 0, 0, 0, est), "2024-01-01T00:00:00-05:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := EncodeQuery(Params{Filters: map[string]any{"updated": DateRange{To: &tt.at}}})
			if got := q.Get("updated_to"); got != tt.want {
				t.Errorf("updated_to = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeQuery_Defaults(t *testing.T) {
	q := url.Values{"secret": {"x"}, "unknown": {"y"}}
	p, err := DecodeQuery(q, querySchema(t), Pagination{Page: 1, PageSize: 25})
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if p.Pagination != (Pagination{Page: 1, PageSize: 25}) {
		t.Errorf("Pagination = %+v, want defaults", p.Pagination)
	}
	if len(p.Filters) != 0 {
		t.Errorf("Filters = %v, want none for non-filterable keys", p.Filters)
	}
}

func TestDecodeQuery_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		check func(error) bool
	}{
		{"bad page", url.Values{"page": {"zero"}}, func(err error) bool { return errors.Is(err, ErrInvalidPagination) }},
		{"negative limit", url.Values{"limit": {"-4"}}, func(err error) bool { return errors.Is(err, ErrInvalidPagination) }},
		{"bad sort", url.Values{"sort": {"price:up"}}, func(err error) bool { return err != nil }},
		{"bad number", url.Values{"price_min": {"cheap"}}, func(err error) bool {
			var verrs ValidationErrors
			return errors.As(err, &verrs) && verrs[0].Column == "price"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeQuery(tt.query, querySchema(t), Pagination{Page: 1, PageSize: 25})
			if !tt.check(err) {
				t.Errorf("DecodeQuery error = %v", err)
			}
		})
	}
}

func TestParseSort(t *testing.T) {
	got, err := ParseSort("price:DESC, name ,-created")
	if err != nil {
		t.Fatalf("ParseSort: %v", err)
	}
	want := []Sort{
		{Field: "price", Direction: Desc},
		{Field: "name", Direction: Asc},
		{Field: "created", Direction: Desc},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseSort = %v, want %v", got, want)
	}
}
