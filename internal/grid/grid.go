package grid

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config wires a Grid.
type Config struct {
	Source DataSource
	Schema SchemaProvider
	// Transformer, when set, puts a Repository in front of Source.
	Transformer Transformer
	RowID       RowIDFunc
	Initial     TableState

	SearchDebounce time.Duration
	FetchTimeout   time.Duration
	CommitTimeout  time.Duration

	// Save and SaveAll override the savers derived from the source's
	// capabilities. LocalEdits disables saving entirely.
	Save       RowSaver
	SaveAll    BulkSaver
	LocalEdits bool

	Logger *slog.Logger
}

// RowView is one display row: fetched values with pending edits overlaid.
type RowView struct {
	ID       string
	Row      Row
	Selected bool
	Status   RowStatus
	Err      error
}

// Grid ties the schema, state controller, fetcher, editor, and selection
// together around one data source.
type Grid struct {
	source DataSource
	schema *Schema
	rowID  RowIDFunc
	logger *slog.Logger

	ctrl      *Controller
	fetcher   *Fetcher
	editor    *Editor
	selection *Selection
}

// New loads the schema, wires the subsystems, and issues the first fetch.
// ctx bounds every fetch the grid issues.
func New(ctx context.Context, cfg Config) (*Grid, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("grid: source is required")
	}
	schema, err := LoadSchema(ctx, cfg.Schema)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rowID := cfg.RowID
	if rowID == nil {
		rowID = DefaultRowID
	}

	source := cfg.Source
	if cfg.Transformer != nil {
		source = NewRepository(source, cfg.Transformer)
	}

	g := &Grid{
		source: source,
		schema: schema,
		rowID:  rowID,
		logger: logger,
		ctrl:   NewController(cfg.Initial),
	}
	g.fetcher = NewFetcher(ctx, g.ctrl, source, FetcherOptions{
		SearchDebounce: cfg.SearchDebounce,
		Timeout:        cfg.FetchTimeout,
		Logger:         logger,
	})

	save, saveAll := cfg.Save, cfg.SaveAll
	if !cfg.LocalEdits {
		caps := CapabilitiesOf(source)
		if save == nil && caps.Update {
			save = func(ctx context.Context, id string, changes Row) error {
				_, err := Update(ctx, source, id, changes)
				return err
			}
		}
		if saveAll == nil && caps.BatchUpdate {
			saveAll = func(ctx context.Context, updates []RowUpdate) (BulkResult, error) {
				return BatchUpdate(ctx, source, updates)
			}
		}
	} else {
		save, saveAll = nil, nil
	}
	g.editor = NewEditor(EditorOptions{
		Schema:  schema,
		Save:    save,
		SaveAll: saveAll,
		Lookup:  g.loadedRow,
		Timeout: cfg.CommitTimeout,
		Logger:  logger,
	})
	g.selection = NewSelection(g.ctrl, g.loadedIDs)

	g.fetcher.Refetch()
	return g, nil
}

func (g *Grid) Controller() *Controller { return g.ctrl }
func (g *Grid) Fetcher() *Fetcher       { return g.fetcher }
func (g *Grid) Editor() *Editor         { return g.editor }
func (g *Grid) Selection() *Selection   { return g.selection }
func (g *Grid) Schema() *Schema         { return g.schema }
func (g *Grid) Source() DataSource      { return g.source }

// Capabilities reports what the grid's source supports.
func (g *Grid) Capabilities() Capabilities { return CapabilitiesOf(g.source) }

// View returns the latest fetch view.
func (g *Grid) View() View { return g.fetcher.View() }

// Wait blocks until all fetches have settled.
func (g *Grid) Wait() { g.fetcher.Wait() }

// Refetch re-issues the fetch for the current state.
func (g *Grid) Refetch() { g.fetcher.Refetch() }

// Close stops the fetcher.
func (g *Grid) Close() { g.fetcher.Close() }

// DisplayRows returns the loaded rows with pending edits overlaid and the
// selection flag set.
func (g *Grid) DisplayRows() []RowView {
	rows := g.fetcher.View().Rows
	out := make([]RowView, len(rows))
	for i, r := range rows {
		id := g.rowID(r)
		out[i] = RowView{
			ID:       id,
			Row:      g.editor.DisplayRow(id, r),
			Selected: g.selection.IsSelected(id),
			Status:   g.editor.Status(id),
			Err:      g.editor.Err(id),
		}
	}
	return out
}

// EditCell records a pending edit.
func (g *Grid) EditCell(id, column string, value any) error {
	return g.editor.EditCell(id, column, value)
}

// CommitRow saves one row's edits and refetches on success.
func (g *Grid) CommitRow(ctx context.Context, id string) error {
	if err := g.editor.CommitRow(ctx, id); err != nil {
		return err
	}
	g.fetcher.Refetch()
	return nil
}

// CommitAll saves every pending row and refetches if anything was saved.
func (g *Grid) CommitAll(ctx context.Context) (BulkResult, error) {
	res, err := g.editor.CommitAll(ctx)
	if res.Affected > 0 {
		g.fetcher.Refetch()
	}
	return res, err
}

// CancelRow drops one row's pending edits.
func (g *Grid) CancelRow(id string) { g.editor.CancelRow(id) }

// CancelAll drops every pending edit.
func (g *Grid) CancelAll() { g.editor.CancelAll() }

// CreateRow validates row, creates it through the source, and refetches.
func (g *Grid) CreateRow(ctx context.Context, row Row) (Row, error) {
	if g.schema.Len() > 0 {
		if err := g.schema.ValidateRow(row); err != nil {
			return nil, err
		}
	}
	created, err := Create(ctx, g.source, row)
	if err != nil {
		return nil, err
	}
	g.fetcher.Refetch()
	return created, nil
}

// DeleteRow deletes one row, drops its selection and edits, and refetches.
func (g *Grid) DeleteRow(ctx context.Context, id string) error {
	if err := Delete(ctx, g.source, id); err != nil {
		return err
	}
	g.selection.Deselect(id)
	g.editor.CancelRow(id)
	g.fetcher.Refetch()
	return nil
}

// DeleteSelected bulk deletes every selected row, including rows not on the
// loaded page. Deleted ids leave the selection; failed ones stay selected.
func (g *Grid) DeleteSelected(ctx context.Context) (BulkResult, error) {
	ids := g.selection.SelectedIDs()
	if len(ids) == 0 {
		return BulkResult{}, nil
	}
	res, err := BulkDelete(ctx, g.source, ids)
	if err != nil && res.Affected == 0 {
		return res, err
	}

	failed := make(map[string]struct{}, len(res.Errors))
	for _, be := range res.Errors {
		failed[be.ID] = struct{}{}
	}
	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := failed[id]; !ok {
			deleted = append(deleted, id)
		}
	}
	g.selection.Deselect(deleted...)
	for _, id := range deleted {
		g.editor.CancelRow(id)
	}
	if res.Affected > 0 {
		g.fetcher.Refetch()
	}
	return res, err
}

func (g *Grid) loadedRow(id string) (Row, bool) {
	for _, r := range g.fetcher.View().Rows {
		if g.rowID(r) == id {
			return r, true
		}
	}
	return nil, false
}

func (g *Grid) loadedIDs() []string {
	rows := g.fetcher.View().Rows
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = g.rowID(r)
	}
	return ids
}
