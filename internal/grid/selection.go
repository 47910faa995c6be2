package grid

import "sort"

// PageSelectState summarizes how much of the loaded page is selected.
type PageSelectState int

const (
	PageSelectNone PageSelectState = iota
	PageSelectPartial
	PageSelectAll
)

func (s PageSelectState) String() string {
	switch s {
	case PageSelectPartial:
		return "partial"
	case PageSelectAll:
		return "all"
	}
	return "none"
}

// Selection tracks selected rows by stable row id. The set lives in the
// Controller's state, so membership survives paging, sorting, and filtering:
// a row selected on page 1 is still selected after visiting page 2.
type Selection struct {
	ctrl *Controller
	page func() []string
}

// NewSelection creates a Selection over ctrl. page returns the ids of the
// rows currently loaded.
func NewSelection(ctrl *Controller, page func() []string) *Selection {
	return &Selection{ctrl: ctrl, page: page}
}

// ToggleRow flips membership of id.
func (s *Selection) ToggleRow(id string) {
	if id == "" {
		return
	}
	s.ctrl.UpdateSelection(func(sel map[string]struct{}) bool {
		if _, ok := sel[id]; ok {
			delete(sel, id)
		} else {
			sel[id] = struct{}{}
		}
		return true
	})
}

// Select adds ids.
func (s *Selection) Select(ids ...string) {
	s.ctrl.UpdateSelection(func(sel map[string]struct{}) bool {
		changed := false
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, ok := sel[id]; !ok {
				sel[id] = struct{}{}
				changed = true
			}
		}
		return changed
	})
}

// Deselect removes ids. Unknown ids are ignored.
func (s *Selection) Deselect(ids ...string) {
	s.ctrl.UpdateSelection(func(sel map[string]struct{}) bool {
		changed := false
		for _, id := range ids {
			if _, ok := sel[id]; ok {
				delete(sel, id)
				changed = true
			}
		}
		return changed
	})
}

// IsSelected reports whether id is selected, loaded or not.
func (s *Selection) IsSelected(id string) bool {
	found := false
	s.ctrl.UpdateSelection(func(sel map[string]struct{}) bool {
		_, found = sel[id]
		return false
	})
	return found
}

// ToggleSelectAllOnPage deselects the loaded page's rows if all of them are
// selected, and selects all of them otherwise. Selections of rows on other
// pages are left alone.
func (s *Selection) ToggleSelectAllOnPage() {
	ids := s.pageIDs()
	if len(ids) == 0 {
		return
	}
	s.ctrl.UpdateSelection(func(sel map[string]struct{}) bool {
		all := true
		for _, id := range ids {
			if _, ok := sel[id]; !ok {
				all = false
				break
			}
		}
		for _, id := range ids {
			if all {
				delete(sel, id)
			} else {
				sel[id] = struct{}{}
			}
		}
		return true
	})
}

// SelectedIDs returns every selected id, sorted.
func (s *Selection) SelectedIDs() []string {
	return s.ctrl.SelectedIDs()
}

// SelectedOnPage returns the selected ids among the loaded rows, in page
// order.
func (s *Selection) SelectedOnPage() []string {
	ids := s.pageIDs()
	var out []string
	s.ctrl.UpdateSelection(func(sel map[string]struct{}) bool {
		for _, id := range ids {
			if _, ok := sel[id]; ok {
				out = append(out, id)
			}
		}
		return false
	})
	return out
}

// PageState reports none, partial, or all for the loaded page.
func (s *Selection) PageState() PageSelectState {
	ids := s.pageIDs()
	n := len(s.SelectedOnPage())
	switch {
	case n == 0:
		return PageSelectNone
	case n == len(ids):
		return PageSelectAll
	}
	return PageSelectPartial
}

// Count returns the number of selected rows across all pages.
func (s *Selection) Count() int {
	return len(s.ctrl.SelectedIDs())
}

// Clear deselects everything.
func (s *Selection) Clear() {
	s.ctrl.UpdateSelection(func(sel map[string]struct{}) bool {
		if len(sel) == 0 {
			return false
		}
		for id := range sel {
			delete(sel, id)
		}
		return true
	})
}

func (s *Selection) pageIDs() []string {
	if s.page == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, id := range s.page() {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// sortedSet returns the members of set in sorted order.
func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
