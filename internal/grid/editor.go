package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"
)

// RowStatus is the editing state of one row.
type RowStatus int

const (
	StatusClean RowStatus = iota
	StatusDirty
	StatusCommitting
	StatusFailed
)

func (s RowStatus) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusDirty:
		return "dirty"
	case StatusCommitting:
		return "committing"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("RowStatus(%d)", int(s))
}

// RowSaver persists one row's pending changes.
type RowSaver func(ctx context.Context, id string, changes Row) error

// BulkSaver persists pending changes of several rows in one call.
type BulkSaver func(ctx context.Context, updates []RowUpdate) (BulkResult, error)

// EditorOptions configures an Editor. With neither saver set, commits only
// clear local edits.
type EditorOptions struct {
	Schema  *Schema
	Save    RowSaver
	SaveAll BulkSaver
	// Lookup returns the last fetched row, used as context for validation.
	Lookup  func(id string) (Row, bool)
	Timeout time.Duration
	Logger  *slog.Logger
}

type editEntry struct {
	changes Row
	status  RowStatus
	err     error
}

// Editor tracks uncommitted cell edits per row id.
//
// Fetched rows are never modified. Display values come from overlaying the
// pending edits on top of them. While a row's last commit has failed its
// edits are kept but not overlaid, so the display shows the fetched value
// until the row is edited again, committed, or cancelled.
type Editor struct {
	opts   EditorOptions
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*editEntry
}

// NewEditor creates an Editor.
func NewEditor(opts EditorOptions) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*editEntry),
	}
}

// EditCell records a new value for one cell. Editing a cell to the value it
// already has still marks the row dirty.
func (e *Editor) EditCell(id, column string, value any) error {
	if id == "" {
		return fmt.Errorf("%w: empty row id", ErrRowNotFound)
	}
	if s := e.opts.Schema; s != nil && s.Len() > 0 {
		col, ok := s.Column(column)
		if !ok {
			return ValidationErrors{{Column: column, Value: value, Message: "unknown column"}}
		}
		if !col.Editable {
			return fmt.Errorf("%w: %s", ErrColumnNotEditable, column)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.entries[id]
	if !ok {
		entry = &editEntry{changes: Row{}}
		e.entries[id] = entry
	}
	entry.changes[column] = value
	if entry.status != StatusCommitting {
		entry.status = StatusDirty
		entry.err = nil
	}
	return nil
}

// CommitRow validates and saves one row's pending edits. A row with no
// pending edits commits trivially.
//
// On validation failure the saver is not called and the row stays dirty. On
// save failure the edits are kept, the row is marked failed, and a
// *CommitError is returned. On success only the committed values are
// cleared; edits made while the save was in flight remain pending.
func (e *Editor) CommitRow(ctx context.Context, id string) error {
	base := e.lookup(id)

	e.mu.Lock()
	entry, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if entry.status == StatusCommitting {
		e.mu.Unlock()
		return fmt.Errorf("%w: row %s", ErrCommitInProgress, id)
	}
	snapshot := entry.changes.Clone()
	if err := e.validate(snapshot, base); err != nil {
		entry.status = StatusDirty
		entry.err = err
		e.mu.Unlock()
		return err
	}
	if e.opts.Save == nil {
		delete(e.entries, id)
		e.mu.Unlock()
		return nil
	}
	entry.status = StatusCommitting
	entry.err = nil
	e.mu.Unlock()

	ctx, cancel := e.commitContext(ctx)
	err := e.opts.Save(ctx, id, snapshot.Clone())
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishLocked(id, snapshot, err)
}

// finishLocked applies the outcome of a save of snapshot for row id.
func (e *Editor) finishLocked(id string, snapshot Row, err error) error {
	entry, ok := e.entries[id]
	if !ok {
		// Cancelled while the save was in flight.
		if err != nil {
			return &CommitError{RowID: id, Err: err}
		}
		return nil
	}
	if err != nil {
		cerr := &CommitError{RowID: id, Err: err}
		entry.status = StatusFailed
		entry.err = cerr
		e.logger.Warn("commit failed", "row_id", id, "error", err)
		return cerr
	}
	for k, v := range snapshot {
		if cur, ok := entry.changes[k]; ok && reflect.DeepEqual(cur, v) {
			delete(entry.changes, k)
		}
	}
	if len(entry.changes) == 0 {
		delete(e.entries, id)
		return nil
	}
	entry.status = StatusDirty
	entry.err = nil
	return nil
}

// CommitAll commits every row with pending edits that is not already
// committing. It uses the bulk saver when configured, otherwise one save per
// row. Rows failing validation are reported in the result and not saved.
func (e *Editor) CommitAll(ctx context.Context) (BulkResult, error) {
	ids := e.pendingIDs()
	bases := make(map[string]Row, len(ids))
	for _, id := range ids {
		bases[id] = e.lookup(id)
	}

	var res BulkResult
	var updates []RowUpdate

	e.mu.Lock()
	for _, id := range ids {
		entry, ok := e.entries[id]
		if !ok || entry.status == StatusCommitting {
			continue
		}
		snapshot := entry.changes.Clone()
		if err := e.validate(snapshot, bases[id]); err != nil {
			entry.status = StatusDirty
			entry.err = err
			res.addFailure(id, err)
			continue
		}
		updates = append(updates, RowUpdate{ID: id, Changes: snapshot})
	}

	switch {
	case len(updates) == 0:
		e.mu.Unlock()
		return res, nil

	case e.opts.SaveAll == nil && e.opts.Save == nil:
		for _, up := range updates {
			delete(e.entries, up.ID)
			res.addSuccess()
		}
		e.mu.Unlock()
		return res, nil
	}

	for _, up := range updates {
		e.entries[up.ID].status = StatusCommitting
		e.entries[up.ID].err = nil
	}
	e.mu.Unlock()

	if e.opts.SaveAll != nil {
		return e.commitBulk(ctx, updates, res)
	}
	return e.commitSequential(ctx, updates, res)
}

func (e *Editor) commitBulk(ctx context.Context, updates []RowUpdate, res BulkResult) (BulkResult, error) {
	wire := make([]RowUpdate, len(updates))
	for i, up := range updates {
		wire[i] = RowUpdate{ID: up.ID, Changes: up.Changes.Clone()}
	}

	ctx, cancel := e.commitContext(ctx)
	bulk, err := e.opts.SaveAll(ctx, wire)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		for _, up := range updates {
			e.finishLocked(up.ID, up.Changes, err)
			res.addFailure(up.ID, err)
		}
		return res, err
	}

	failed := make(map[string]string, len(bulk.Errors))
	for _, be := range bulk.Errors {
		failed[be.ID] = be.Message
	}
	for _, up := range updates {
		if msg, ok := failed[up.ID]; ok {
			e.finishLocked(up.ID, up.Changes, errors.New(msg))
			res.Errors = append(res.Errors, BulkError{ID: up.ID, Message: msg})
			continue
		}
		e.finishLocked(up.ID, up.Changes, nil)
		res.addSuccess()
	}
	return res, nil
}

func (e *Editor) commitSequential(ctx context.Context, updates []RowUpdate, res BulkResult) (BulkResult, error) {
	for _, up := range updates {
		if err := ctx.Err(); err != nil {
			// Release rows that were never attempted.
			e.mu.Lock()
			for _, rest := range updates {
				if entry, ok := e.entries[rest.ID]; ok && entry.status == StatusCommitting {
					entry.status = StatusDirty
				}
			}
			e.mu.Unlock()
			return res, err
		}

		sctx, cancel := e.commitContext(ctx)
		err := e.opts.Save(sctx, up.ID, up.Changes.Clone())
		cancel()

		e.mu.Lock()
		e.finishLocked(up.ID, up.Changes, err)
		e.mu.Unlock()
		if err != nil {
			res.addFailure(up.ID, err)
			continue
		}
		res.addSuccess()
	}
	return res, nil
}

// CancelRow drops a row's pending edits. The display returns to the fetched
// value. The saver is not called.
func (e *Editor) CancelRow(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, id)
}

// CancelAll drops every pending edit.
func (e *Editor) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = make(map[string]*editEntry)
}

// Status returns the editing state of a row.
func (e *Editor) Status(id string) RowStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.entries[id]; ok {
		return entry.status
	}
	return StatusClean
}

// Err returns the last validation or commit error of a row.
func (e *Editor) Err(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.entries[id]; ok {
		return entry.err
	}
	return nil
}

// Pending returns a copy of a row's pending changes, or nil.
func (e *Editor) Pending(id string) Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.entries[id]; ok {
		return entry.changes.Clone()
	}
	return nil
}

// EditedRows returns a copy of every row's pending changes.
func (e *Editor) EditedRows() map[string]Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Row, len(e.entries))
	for id, entry := range e.entries {
		out[id] = entry.changes.Clone()
	}
	return out
}

// HasChanges reports whether any row has pending edits.
func (e *Editor) HasChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries) > 0
}

// DisplayRow returns row with the pending edits of id overlaid. The input row
// is not modified.
func (e *Editor) DisplayRow(id string, row Row) Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlayLocked(id, row)
}

// Overlay applies DisplayRow to every row, keyed by rowID.
func (e *Editor) Overlay(rows []Row, rowID RowIDFunc) []Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = e.overlayLocked(rowID(r), r)
	}
	return out
}

func (e *Editor) overlayLocked(id string, row Row) Row {
	entry, ok := e.entries[id]
	if !ok || entry.status == StatusFailed {
		return row.Clone()
	}
	out := row.Clone()
	if out == nil {
		out = Row{}
	}
	for k, v := range entry.changes {
		out[k] = v
	}
	return out
}

func (e *Editor) pendingIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.entries))
	for id := range e.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Editor) lookup(id string) Row {
	if e.opts.Lookup == nil {
		return nil
	}
	row, _ := e.opts.Lookup(id)
	return row
}

func (e *Editor) validate(changes, base Row) error {
	if e.opts.Schema == nil || e.opts.Schema.Len() == 0 {
		return nil
	}
	return e.opts.Schema.Validate(changes, base)
}

func (e *Editor) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.Timeout > 0 {
		return context.WithTimeout(ctx, e.opts.Timeout)
	}
	return context.WithCancel(ctx)
}
