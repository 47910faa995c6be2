package grid

import (
	"fmt"
	"reflect"
	"sync"
)

// DefaultPageSize is used when a controller is created without a page size.
const DefaultPageSize = 25

// ChangeKind names the setter that produced a Change.
type ChangeKind string

const (
	ChangePage      ChangeKind = "page"
	ChangePageSize  ChangeKind = "pageSize"
	ChangeSorting   ChangeKind = "sorting"
	ChangeFilter    ChangeKind = "filter"
	ChangeSearch    ChangeKind = "search"
	ChangeSelection ChangeKind = "selection"
	ChangeReset     ChangeKind = "reset"
)

// Change is delivered to subscribers after every state mutation.
type Change struct {
	Kind       ChangeKind
	Generation uint64
	State      TableState
}

// Query reports whether the change affects what must be fetched.
func (c Change) Query() bool { return c.Kind != ChangeSelection }

// Controller is the single owner of a grid's TableState.
//
// All mutations go through its setters. Query changes (page, page size,
// sorting, filters, search) advance the generation; selection changes do not.
// Subscribers are called synchronously after the lock is released, in
// subscription order. Setters that would not change anything notify nobody.
type Controller struct {
	mu      sync.Mutex
	state   TableState
	initial TableState
	gen     uint64

	subMu   sync.Mutex
	subs    map[int]func(Change)
	subKeys []int
	nextSub int
}

// NewController creates a controller seeded with initial. A zero page becomes
// 1 and a zero page size becomes DefaultPageSize.
func NewController(initial TableState) *Controller {
	if initial.Pagination.Page < 1 {
		initial.Pagination.Page = 1
	}
	if initial.Pagination.PageSize < 1 {
		initial.Pagination.PageSize = DefaultPageSize
	}
	initial = initial.clone()
	return &Controller{
		state:   initial.clone(),
		initial: initial,
		subs:    make(map[int]func(Change)),
	}
}

// Subscribe registers fn for every change and returns a function that
// removes it.
func (c *Controller) Subscribe(fn func(Change)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subKeys = append(c.subKeys, id)
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
		for i, k := range c.subKeys {
			if k == id {
				c.subKeys = append(c.subKeys[:i], c.subKeys[i+1:]...)
				break
			}
		}
	}
}

// State returns a deep copy of the current state.
func (c *Controller) State() TableState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Generation returns the number of query changes applied so far.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Params builds the fetch parameters for the current state.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return paramsFor(c.state)
}

// Snapshot returns the fetch parameters together with their generation.
func (c *Controller) Snapshot() (Params, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return paramsFor(c.state), c.gen
}

func paramsFor(s TableState) Params {
	s = s.clone()
	return Params{
		Pagination: s.Pagination,
		Sorting:    s.Sorting,
		Filters:    s.Filters,
		Search:     s.Search,
	}
}

// SetPage moves to page (1-based).
func (c *Controller) SetPage(page int) error {
	if page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidPagination, page)
	}
	c.apply(ChangePage, func(s *TableState) bool {
		if s.Pagination.Page == page {
			return false
		}
		s.Pagination.Page = page
		return true
	})
	return nil
}

// SetPageSize changes the page size and returns to page 1.
func (c *Controller) SetPageSize(size int) error {
	if size < 1 {
		return fmt.Errorf("%w: page size %d", ErrInvalidPagination, size)
	}
	c.apply(ChangePageSize, func(s *TableState) bool {
		if s.Pagination.PageSize == size {
			return false
		}
		s.Pagination.PageSize = size
		s.Pagination.Page = 1
		return true
	})
	return nil
}

// SetSorting replaces the ordered sort keys. An empty direction means Asc.
// The current page is kept.
func (c *Controller) SetSorting(sorting ...Sort) error {
	norm := make([]Sort, 0, len(sorting))
	for _, srt := range sorting {
		if srt.Field == "" {
			return fmt.Errorf("sort field is empty")
		}
		switch srt.Direction {
		case "":
			srt.Direction = Asc
		case Asc, Desc:
		default:
			return fmt.Errorf("invalid sort direction %q for %s", srt.Direction, srt.Field)
		}
		norm = append(norm, srt)
	}
	c.apply(ChangeSorting, func(s *TableState) bool {
		if len(s.Sorting) == 0 && len(norm) == 0 {
			return false
		}
		if reflect.DeepEqual(s.Sorting, norm) {
			return false
		}
		s.Sorting = norm
		return true
	})
	return nil
}

// SetFilter sets the filter for one column. A nil value removes the key, so
// "no filter" stays distinguishable from falsy values such as false or 0.
// Any change returns to page 1.
func (c *Controller) SetFilter(key string, value any) {
	c.apply(ChangeFilter, func(s *TableState) bool {
		cur, exists := s.Filters[key]
		if value == nil {
			if !exists {
				return false
			}
			delete(s.Filters, key)
		} else {
			if exists && reflect.DeepEqual(cur, value) {
				return false
			}
			s.Filters[key] = value
		}
		s.Pagination.Page = 1
		return true
	})
}

// SetFilters replaces all filters at once and returns to page 1.
// Nil values are dropped.
func (c *Controller) SetFilters(filters map[string]any) {
	next := make(map[string]any, len(filters))
	for k, v := range filters {
		if v != nil {
			next[k] = v
		}
	}
	c.apply(ChangeFilter, func(s *TableState) bool {
		if reflect.DeepEqual(s.Filters, next) {
			return false
		}
		s.Filters = next
		s.Pagination.Page = 1
		return true
	})
}

// ClearFilters removes every filter and returns to page 1.
func (c *Controller) ClearFilters() {
	c.SetFilters(nil)
}

// SetSearch sets the global free-text query and returns to page 1.
func (c *Controller) SetSearch(q string) {
	c.apply(ChangeSearch, func(s *TableState) bool {
		if s.Search == q {
			return false
		}
		s.Search = q
		s.Pagination.Page = 1
		return true
	})
}

// SetSelection replaces the selected row ids.
func (c *Controller) SetSelection(ids ...string) {
	c.UpdateSelection(func(sel map[string]struct{}) bool {
		next := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			next[id] = struct{}{}
		}
		if len(next) == len(sel) {
			same := true
			for id := range next {
				if _, ok := sel[id]; !ok {
					same = false
					break
				}
			}
			if same {
				return false
			}
		}
		for id := range sel {
			delete(sel, id)
		}
		for id := range next {
			sel[id] = struct{}{}
		}
		return true
	})
}

// UpdateSelection runs fn against the live selection set under the lock.
// fn reports whether it changed anything.
func (c *Controller) UpdateSelection(fn func(sel map[string]struct{}) bool) {
	c.mu.Lock()
	if c.state.Selection == nil {
		c.state.Selection = make(map[string]struct{})
	}
	if !fn(c.state.Selection) {
		c.mu.Unlock()
		return
	}
	ch := Change{Kind: ChangeSelection, Generation: c.gen, State: c.state.clone()}
	c.mu.Unlock()
	c.notify(ch)
}

// SelectedIDs returns the selected ids in sorted order.
func (c *Controller) SelectedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedSet(c.state.Selection)
}

// Reset restores the initial query state. The selection is kept.
func (c *Controller) Reset() {
	c.apply(ChangeReset, func(s *TableState) bool {
		sel := s.Selection
		next := c.initial.clone()
		next.Selection = sel
		if reflect.DeepEqual(paramsFor(*s), paramsFor(next)) {
			return false
		}
		*s = next
		return true
	})
}

// apply runs a query mutation. If fn reports a change the generation advances
// and subscribers are notified.
func (c *Controller) apply(kind ChangeKind, fn func(s *TableState) bool) {
	c.mu.Lock()
	if c.state.Filters == nil {
		c.state.Filters = make(map[string]any)
	}
	if !fn(&c.state) {
		c.mu.Unlock()
		return
	}
	c.gen++
	ch := Change{Kind: kind, Generation: c.gen, State: c.state.clone()}
	c.mu.Unlock()
	c.notify(ch)
}

func (c *Controller) notify(ch Change) {
	c.subMu.Lock()
	fns := make([]func(Change), 0, len(c.subKeys))
	for _, k := range c.subKeys {
		fns = append(fns, c.subs[k])
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}
