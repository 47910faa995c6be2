package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// Memory is an in-process data source. It supports every optional
// operation, including native bulk delete and batch update.
type Memory struct {
	mu     sync.RWMutex
	schema *grid.Schema
	rows   []grid.Row
	idKey  string
	newID  func() string

	// commit is called with the next row set before it replaces the current
	// one. A non-nil error aborts the write.
	commit func(ctx context.Context, next []grid.Row) error
}

// MemoryOption configures a Memory source.
type MemoryOption func(*Memory)

// WithIDField sets the field holding the row id. Defaults to "id".
func WithIDField(key string) MemoryOption {
	return func(m *Memory) { m.idKey = key }
}

// WithIDGenerator sets how ids are assigned to created rows that lack one.
func WithIDGenerator(fn func() string) MemoryOption {
	return func(m *Memory) { m.newID = fn }
}

// NewMemory returns a source holding copies of rows.
func NewMemory(schema *grid.Schema, rows []grid.Row, opts ...MemoryOption) *Memory {
	m := &Memory{
		schema: schema,
		idKey:  "id",
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.rows = cloneRows(rows)
	return m
}

// Capabilities reports full CRUD with native bulk operations.
func (m *Memory) Capabilities() grid.Capabilities {
	return grid.Capabilities{Create: true, Update: true, Delete: true, BulkDelete: true, BatchUpdate: true}
}

// Len returns the number of stored rows.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Rows returns a copy of every stored row in insertion order.
func (m *Memory) Rows() []grid.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRows(m.rows)
}

// Fetch implements grid.DataSource.
func (m *Memory) Fetch(ctx context.Context, p grid.Params) (*grid.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Apply(m.schema, m.rows, p), nil
}

// Create inserts row. A missing id is generated; an existing one is rejected.
func (m *Memory) Create(ctx context.Context, row grid.Row) (grid.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r := row.Clone()
	id := grid.Stringify(r[m.idKey])
	if id == "" {
		id = m.newID()
		r[m.idKey] = id
	}
	if m.indexLocked(id) >= 0 {
		return nil, fmt.Errorf("row %s already exists", id)
	}

	next := append(cloneSlice(m.rows), r)
	if err := m.commitLocked(ctx, next); err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// Update merges changes into the row with the given id.
func (m *Memory) Update(ctx context.Context, id string, changes grid.Row) (grid.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneSlice(m.rows)
	updated, err := m.applyUpdate(next, id, changes)
	if err != nil {
		return nil, err
	}
	if err := m.commitLocked(ctx, next); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Delete removes the row with the given id.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, grid.ErrRowNotFound)
	}
	next := make([]grid.Row, 0, len(m.rows)-1)
	next = append(next, m.rows[:i]...)
	next = append(next, m.rows[i+1:]...)
	return m.commitLocked(ctx, next)
}

// BulkDelete removes every listed row in one write. Unknown ids are reported
// per item.
func (m *Memory) BulkDelete(ctx context.Context, ids []string) (grid.BulkResult, error) {
	var res grid.BulkResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if m.indexLocked(id) < 0 {
			res.Errors = append(res.Errors, grid.BulkError{ID: id, Message: grid.ErrRowNotFound.Error()})
			continue
		}
		if _, dup := drop[id]; dup {
			continue
		}
		drop[id] = struct{}{}
	}
	if len(drop) == 0 {
		return res, nil
	}

	next := make([]grid.Row, 0, len(m.rows))
	for _, r := range m.rows {
		if _, ok := drop[m.rowID(r)]; !ok {
			next = append(next, r)
		}
	}
	if err := m.commitLocked(ctx, next); err != nil {
		return grid.BulkResult{}, err
	}
	res.Affected = len(drop)
	res.Success = true
	return res, nil
}

// BatchUpdate applies every update in one write. Items that fail are
// reported and skipped; the rest are kept.
func (m *Memory) BatchUpdate(ctx context.Context, updates []grid.RowUpdate) (grid.BulkResult, error) {
	var res grid.BulkResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneSlice(m.rows)
	for _, u := range updates {
		if _, err := m.applyUpdate(next, u.ID, u.Changes); err != nil {
			res.Errors = append(res.Errors, grid.BulkError{ID: u.ID, Message: err.Error()})
			continue
		}
		res.Affected++
	}
	if res.Affected == 0 {
		return res, nil
	}
	if err := m.commitLocked(ctx, next); err != nil {
		return grid.BulkResult{}, err
	}
	res.Success = true
	return res, nil
}

// applyUpdate validates changes and replaces the row in next with a merged
// copy.
func (m *Memory) applyUpdate(next []grid.Row, id string, changes grid.Row) (grid.Row, error) {
	i := -1
	for j, r := range next {
		if m.rowID(r) == id {
			i = j
			break
		}
	}
	if i < 0 {
		return nil, fmt.Errorf("update %s: %w", id, grid.ErrRowNotFound)
	}
	if m.schema != nil && m.schema.Len() > 0 {
		if err := m.schema.Validate(changes, next[i]); err != nil {
			return nil, err
		}
	}
	merged := next[i].Clone()
	for k, v := range changes {
		if k == m.idKey {
			continue
		}
		merged[k] = v
	}
	next[i] = merged
	return merged, nil
}

func (m *Memory) commitLocked(ctx context.Context, next []grid.Row) error {
	if m.commit != nil {
		if err := m.commit(ctx, next); err != nil {
			return err
		}
	}
	m.rows = next
	return nil
}

func (m *Memory) indexLocked(id string) int {
	for i, r := range m.rows {
		if m.rowID(r) == id {
			return i
		}
	}
	return -1
}

func (m *Memory) rowID(r grid.Row) string {
	return grid.Stringify(r[m.idKey])
}

func cloneRows(rows []grid.Row) []grid.Row {
	out := make([]grid.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// cloneSlice copies the slice header only. Rows are replaced, never mutated.
func cloneSlice(rows []grid.Row) []grid.Row {
	return append(make([]grid.Row, 0, len(rows)+1), rows...)
}
