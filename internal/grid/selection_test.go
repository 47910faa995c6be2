package grid

import (
	"fmt"
	"reflect"
	"testing"
)

// pageOf returns a page supplier over a mutable id slice.
func pageOf(ids *[]string) func() []string {
	return func() []string { return *ids }
}

func idRange(from, to int) []string {
	var ids []string
	for i := from; i <= to; i++ {
		ids = append(ids, fmt.Sprint(i))
	}
	return ids
}

func TestSelection_SurvivesPaging(t *testing.T) {
	ctrl := NewController(TableState{})
	page := idRange(41, 60)
	sel := NewSelection(ctrl, pageOf(&page))

	sel.ToggleRow("42")

	_ = ctrl.SetPage(2)
	page = idRange(61, 80)
	if !sel.IsSelected("42") {
		t.Error("42 not selected while on page 2")
	}
	if got := sel.SelectedOnPage(); len(got) != 0 {
		t.Errorf("SelectedOnPage on page 2 = %v, want none", got)
	}

	_ = ctrl.SetPage(1)
	page = idRange(41, 60)
	if got := sel.SelectedOnPage(); !reflect.DeepEqual(got, []string{"42"}) {
		t.Errorf("SelectedOnPage back on page 1 = %v, want [42]", got)
	}
}

func TestSelection_ToggleSelectAllOnPageKeepsOtherPages(t *testing.T) {
	ctrl := NewController(TableState{})
	page := idRange(1, 20)
	sel := NewSelection(ctrl, pageOf(&page))
	sel.Select("100", "101", "102", "103", "104")

	sel.ToggleSelectAllOnPage()

	if got := sel.Count(); got != 25 {
		t.Errorf("Count = %d, want 25", got)
	}
	if sel.PageState() != PageSelectAll {
		t.Errorf("PageState = %v, want all", sel.PageState())
	}

	sel.ToggleSelectAllOnPage()

	if got := sel.SelectedIDs(); !reflect.DeepEqual(got, []string{"100", "101", "102", "103", "104"}) {
		t.Errorf("SelectedIDs = %v, want the five off-page ids", got)
	}
}

func TestSelection_ToggleSelectAllPartialSelectsRest(t *testing.T) {
	ctrl := NewController(TableState{})
	page := []string{"a", "b", "c"}
	sel := NewSelection(ctrl, pageOf(&page))
	sel.Select("b")

	if sel.PageState() != PageSelectPartial {
		t.Errorf("PageState = %v, want partial", sel.PageState())
	}
	sel.ToggleSelectAllOnPage()
	if got := sel.SelectedIDs(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("SelectedIDs = %v, want [a b c]", got)
	}
}

func TestSelection_ByIdentityNotPosition(t *testing.T) {
	ctrl := NewController(TableState{})
	page := []string{"x", "y", "z"}
	sel := NewSelection(ctrl, pageOf(&page))
	sel.ToggleRow("y")

	// Re-sorting moves y to the front; its selection follows it.
	page = []string{"y", "z", "x"}
	if got := sel.SelectedOnPage(); !reflect.DeepEqual(got, []string{"y"}) {
		t.Errorf("SelectedOnPage = %v, want [y]", got)
	}
}

func TestSelection_Basics(t *testing.T) {
	ctrl := NewController(TableState{})
	var page []string
	sel := NewSelection(ctrl, pageOf(&page))

	if sel.PageState() != PageSelectNone {
		t.Errorf("empty PageState = %v, want none", sel.PageState())
	}
	sel.ToggleSelectAllOnPage()
	if sel.Count() != 0 {
		t.Errorf("Count = %d after select-all on empty page, want 0", sel.Count())
	}

	sel.Select("1", "2", "")
	sel.ToggleRow("2")
	sel.Deselect("1", "unknown")
	if sel.Count() != 0 {
		t.Errorf("Count = %d, want 0", sel.Count())
	}

	sel.Select("3")
	gen := ctrl.Generation()
	sel.Clear()
	if sel.Count() != 0 {
		t.Errorf("Count after Clear = %d, want 0", sel.Count())
	}
	if ctrl.Generation() != gen {
		t.Error("selection change advanced the query generation")
	}
}
