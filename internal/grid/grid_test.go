package grid

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func newTestGrid(t *testing.T, src DataSource) *Grid {
	t.Helper()
	g, err := New(context.Background(), Config{
		Source:  src,
		Schema:  StaticSchema(testSchema().Columns()),
		Initial: TableState{Pagination: Pagination{PageSize: 10}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(g.Close)
	g.Wait()
	return g
}

func TestGrid_InitialFetch(t *testing.T) {
	g := newTestGrid(t, newFakeSource(25))

	v := g.View()
	if len(v.Rows) != 10 || v.Total != 25 || v.TotalPages != 3 {
		t.Errorf("view = %d rows, total %d, pages %d", len(v.Rows), v.Total, v.TotalPages)
	}
}

func TestGrid_SelectionAcrossPages(t *testing.T) {
	g := newTestGrid(t, newFakeSource(25))
	g.Selection().ToggleRow("2")

	_ = g.Controller().SetPage(2)
	g.Wait()
	for _, rv := range g.DisplayRows() {
		if rv.Selected {
			t.Errorf("row %s selected on page 2", rv.ID)
		}
	}

	_ = g.Controller().SetPage(1)
	g.Wait()
	var selected []string
	for _, rv := range g.DisplayRows() {
		if rv.Selected {
			selected = append(selected, rv.ID)
		}
	}
	if !reflect.DeepEqual(selected, []string{"2"}) {
		t.Errorf("selected rows on page 1 = %v, want [2]", selected)
	}
}

func TestGrid_EditCommitRefetches(t *testing.T) {
	src := newFakeSource(5)
	g := newTestGrid(t, src)
	before := src.fetchCount()

	if err := g.EditCell("3", "price", 42.0); err != nil {
		t.Fatalf("EditCell: %v", err)
	}
	rows := g.DisplayRows()
	if rows[2].Row["price"] != 42.0 || rows[2].Status != StatusDirty {
		t.Errorf("row 3 = %+v, want overlaid price and dirty", rows[2])
	}

	if err := g.CommitRow(context.Background(), "3"); err != nil {
		t.Fatalf("CommitRow: %v", err)
	}
	g.Wait()

	if src.fetchCount() != before+1 {
		t.Errorf("fetches = %d, want %d", src.fetchCount(), before+1)
	}
	rows = g.DisplayRows()
	if rows[2].Row["price"] != 42.0 || rows[2].Status != StatusClean {
		t.Errorf("row 3 after commit = %+v, want saved price and clean", rows[2])
	}
}

func TestGrid_CommitFailureRevertsDisplay(t *testing.T) {
	src := newFakeSource(5)
	src.failUpdate["1"] = errBoom
	g := newTestGrid(t, src)

	_ = g.EditCell("1", "name", "Renamed")
	err := g.CommitRow(context.Background(), "1")
	var ce *CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("CommitRow = %v, want *CommitError", err)
	}
	rv := g.DisplayRows()[0]
	if rv.Row["name"] != "row 1" || rv.Status != StatusFailed || rv.Err == nil {
		t.Errorf("row view = %+v, want fetched name, failed status, error", rv)
	}
}

func TestGrid_DeleteSelected(t *testing.T) {
	src := newFakeSource(25)
	src.failDelete["12"] = errBoom
	g := newTestGrid(t, src)

	g.Selection().Select("1", "2", "12")
	_ = g.EditCell("2", "name", "pending")

	res, err := g.DeleteSelected(context.Background())
	if err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	g.Wait()

	if !res.Success || res.Affected != 2 || len(res.Errors) != 1 || res.Errors[0].ID != "12" {
		t.Errorf("result = %+v", res)
	}
	if got := g.Selection().SelectedIDs(); !reflect.DeepEqual(got, []string{"12"}) {
		t.Errorf("selection = %v, want only the failed id", got)
	}
	if g.Editor().Status("2") != StatusClean {
		t.Error("edits of deleted row kept")
	}
	if v := g.View(); v.Total != 23 {
		t.Errorf("Total after delete = %d, want 23", v.Total)
	}
}

func TestGrid_CreateRequiresCapability(t *testing.T) {
	g := newTestGrid(t, newFakeSource(1))

	_, err := g.CreateRow(context.Background(), Row{"name": "New"})
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("CreateRow = %v, want ErrUnsupportedOperation", err)
	}

	_, err = g.CreateRow(context.Background(), Row{"price": 1})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Errorf("CreateRow without name = %v, want ValidationErrors", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Key: "products", Source: fetchOnly{}})
	r.Register(Definition{Key: "orders", Source: fetchOnly{}})

	if got := r.Keys(); !reflect.DeepEqual(got, []string{"orders", "products"}) {
		t.Errorf("Keys = %v", got)
	}
	def, err := r.Lookup("products")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if def.Label != "products" || def.RowID == nil {
		t.Errorf("defaults not applied: %+v", def)
	}
	if _, err := r.Lookup("nope"); !errors.Is(err, ErrUnknownGrid) {
		t.Errorf("Lookup(nope) = %v, want ErrUnknownGrid", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	r.Register(Definition{Key: "products"})
}
