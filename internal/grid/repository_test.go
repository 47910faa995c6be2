package grid

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func productMap() *FieldMap {
	cents := Codec{
		Decode: func(v any) (any, error) {
			f, ok := ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("invalid number %v", v)
			}
			return f / 100, nil
		},
		Encode: func(v any) (any, error) {
			f, ok := ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("invalid number %v", v)
			}
			return f * 100, nil
		},
	}
	return NewFieldMap(
		FieldMapping{Domain: "id", API: "product_id"},
		FieldMapping{Domain: "name", API: "title"},
		FieldMapping{Domain: "price", API: "pricing.amount_cents", Codec: cents},
		FieldMapping{Domain: "currency", API: "pricing.currency"},
	)
}

func TestFieldMap_RoundTrip(t *testing.T) {
	fm := productMap()
	rows := []Row{
		{"id": "p1", "name": "Desk", "price": 129.5, "currency": "USD"},
		{"id": "p2", "name": "Lamp"},
		{"price": 0.25},
		{},
	}
	for _, r := range rows {
		dto, err := fm.ToAPI(r)
		if err != nil {
			t.Fatalf("ToAPI(%v): %v", r, err)
		}
		back, err := fm.ToDomain(dto)
		if err != nil {
			t.Fatalf("ToDomain(%v): %v", dto, err)
		}
		if !reflect.DeepEqual(back, r) {
			t.Errorf("ToDomain(ToAPI(%v)) = %v", r, back)
		}
	}
}

func TestFieldMap_NestedPaths(t *testing.T) {
	dto, err := productMap().ToAPI(Row{"price": 2.0, "currency": "EUR"})
	if err != nil {
		t.Fatalf("ToAPI: %v", err)
	}
	pricing, ok := dto["pricing"].(map[string]any)
	if !ok {
		t.Fatalf("pricing = %T, want map", dto["pricing"])
	}
	if pricing["amount_cents"] != 200.0 || pricing["currency"] != "EUR" {
		t.Errorf("pricing = %v", pricing)
	}
}

func TestFieldMap_Passthrough(t *testing.T) {
	fm := NewFieldMap(FieldMapping{Domain: "name", API: "title"})
	fm.Passthrough = true

	got, err := fm.ToDomain(Row{"title": "Desk", "extra": 1})
	if err != nil {
		t.Fatalf("ToDomain: %v", err)
	}
	want := Row{"name": "Desk", "extra": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToDomain = %v, want %v", got, want)
	}
}

func TestFieldMap_ToAPILeavesNestedInputAlone(t *testing.T) {
	fm := NewFieldMap(FieldMapping{Domain: "amount", API: "pricing.amount_cents"})
	fm.Passthrough = true

	pricing := map[string]any{"currency": "EUR"}
	row := Row{"amount": 200.0, "pricing": pricing}
	dto, err := fm.ToAPI(row)
	if err != nil {
		t.Fatalf("ToAPI: %v", err)
	}

	if _, ok := pricing["amount_cents"]; ok {
		t.Errorf("caller's nested map was written: %v", pricing)
	}
	got, ok := dto["pricing"].(map[string]any)
	if !ok {
		t.Fatalf("pricing = %T, want map", dto["pricing"])
	}
	want := map[string]any{"currency": "EUR", "amount_cents": 200.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pricing = %v, want %v", got, want)
	}
}

// apiSource records the params it receives and returns wire-shaped rows.
type apiSource struct {
	got     Params
	updated Row
}

func (s *apiSource) Fetch(_ context.Context, p Params) (*Result, error) {
	s.got = p
	return NewResult([]Row{{"product_id": "p1", "title": "Desk", "pricing": map[string]any{"amount_cents": 1000.0}}}, 1, 1, 10), nil
}

func (s *apiSource) Update(_ context.Context, id string, changes Row) (Row, error) {
	s.updated = changes
	out := Row{"product_id": id}
	for k, v := range changes {
		out[k] = v
	}
	return out, nil
}

func TestRepository_Fetch(t *testing.T) {
	src := &apiSource{}
	repo := NewRepository(src, productMap())

	res, err := repo.Fetch(context.Background(), Params{
		Pagination: Pagination{Page: 1, PageSize: 10},
		Sorting:    []Sort{{Field: "price", Direction: Desc}},
		Filters:    map[string]any{"name": "Desk"},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if src.got.Sorting[0].Field != "pricing.amount_cents" {
		t.Errorf("sort field sent = %q, want pricing.amount_cents", src.got.Sorting[0].Field)
	}
	if _, ok := src.got.Filters["title"]; !ok {
		t.Errorf("filters sent = %v, want key title", src.got.Filters)
	}
	want := Row{"id": "p1", "name": "Desk", "price": 10.0}
	if !reflect.DeepEqual(res.Rows[0], want) {
		t.Errorf("row = %v, want %v", res.Rows[0], want)
	}
}

func TestRepository_UpdateSendsAPIShape(t *testing.T) {
	src := &apiSource{}
	repo := NewRepository(src, productMap())

	row, err := repo.Update(context.Background(), "p1", Row{"name": "Standing desk"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if src.updated["title"] != "Standing desk" {
		t.Errorf("sent changes = %v, want title", src.updated)
	}
	if row["name"] != "Standing desk" || row["id"] != "p1" {
		t.Errorf("returned row = %v", row)
	}
}

func TestRepository_BulkDeleteFallback(t *testing.T) {
	src := newFakeSource(0)
	src.rows = []Row{{"id": "a"}, {"id": "b"}, {"id": "c"}}
	src.failDelete["b"] = errors.New("row is locked")
	repo := NewRepository(src, nil)

	res, err := repo.BulkDelete(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if !res.Success || res.Affected != 2 {
		t.Errorf("result = %+v, want success with 2 affected", res)
	}
	want := []BulkError{{ID: "b", Message: "row is locked"}}
	if !reflect.DeepEqual(res.Errors, want) {
		t.Errorf("Errors = %v, want %v", res.Errors, want)
	}
}

func TestRepository_BulkResultFlags(t *testing.T) {
	tests := []struct {
		name        string
		fail        []string
		wantSuccess bool
		wantNilErrs bool
	}{
		{"all succeed", nil, true, true},
		{"all fail", []string{"a", "b"}, false, false},
		{"one fails", []string{"a"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(0)
			src.rows = []Row{{"id": "a"}, {"id": "b"}}
			for _, id := range tt.fail {
				src.failDelete[id] = errBoom
			}
			res, _ := NewRepository(src, nil).BulkDelete(context.Background(), []string{"a", "b"})
			if res.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", res.Success, tt.wantSuccess)
			}
			if (res.Errors == nil) != tt.wantNilErrs {
				t.Errorf("Errors = %v, want nil=%v", res.Errors, tt.wantNilErrs)
			}
		})
	}
}

func TestRepository_BatchUpdateFallback(t *testing.T) {
	src := newFakeSource(3)
	src.failUpdate["2"] = errBoom
	repo := NewRepository(src, nil)

	res, err := repo.BatchUpdate(context.Background(), []RowUpdate{
		{ID: "1", Changes: Row{"name": "one"}},
		{ID: "2", Changes: Row{"name": "two"}},
	})
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if res.Affected != 1 || len(res.Errors) != 1 || res.Errors[0].ID != "2" {
		t.Errorf("result = %+v", res)
	}
	if src.rows[0]["name"] != "one" {
		t.Errorf("row 1 name = %v, want one", src.rows[0]["name"])
	}
}

func TestUnsupportedOperations(t *testing.T) {
	ctx := context.Background()
	var ds DataSource = fetchOnly{}

	checks := map[string]error{}
	_, checks["create"] = Create(ctx, ds, Row{})
	_, checks["update"] = Update(ctx, ds, "1", Row{})
	checks["delete"] = Delete(ctx, ds, "1")
	_, checks["bulkDelete"] = BulkDelete(ctx, ds, []string{"1"})
	_, checks["batchUpdate"] = BatchUpdate(ctx, ds, nil)
	_, checks["repo bulkDelete"] = NewRepository(ds, nil).BulkDelete(ctx, []string{"1"})

	for op, err := range checks {
		if !errors.Is(err, ErrUnsupportedOperation) {
			t.Errorf("%s error = %v, want ErrUnsupportedOperation", op, err)
		}
		var ue *UnsupportedError
		if !errors.As(err, &ue) {
			t.Errorf("%s error = %T, want *UnsupportedError", op, err)
		}
	}

	if caps := CapabilitiesOf(ds); caps != (Capabilities{}) {
		t.Errorf("CapabilitiesOf(fetchOnly) = %+v, want none", caps)
	}
	caps := CapabilitiesOf(NewRepository(newFakeSource(0), nil))
	want := Capabilities{Update: true, Delete: true, BulkDelete: true, BatchUpdate: true}
	if caps != want {
		t.Errorf("CapabilitiesOf(repository) = %+v, want %+v", caps, want)
	}
}
