// Package grid provides the data-grid engine behind the admin tables.
//
// This package owns every piece of table behaviour that is independent of
// rendering and transport. Web handlers, the CLI, and tests drive it through
// the same API.
//
// # Architecture
//
// The engine is organized around a handful of collaborators:
//
//   - Schema: ordered [ColumnDefinition] values loaded once from a
//     [SchemaProvider] and treated as immutable.
//   - Controller: the single owner of [TableState] (pagination, sorting,
//     filters, search, selection). Everything else proposes changes through
//     its setters.
//   - DataSource: one mandatory operation ([DataSource.Fetch]) plus optional
//     capabilities ([Creator], [Updater], [Deleter], [BulkDeleter],
//     [BatchUpdater]).
//   - Repository: an optional decorator that runs records through a
//     [Transformer] so the grid never sees wire-format field names.
//   - Fetcher: reacts to state changes, calls the data source, and drops
//     responses that belong to a superseded request.
//   - Editor: uncommitted per-cell edits keyed by row id, with row-level and
//     all-rows commit/rollback.
//   - Selection: a set of stable row ids that survives paging, sorting and
//     filtering.
//
// [Grid] wires all of them together.
//
// # Row Identity
//
// Transient per-row state (selection, edits) is always keyed by the value
// returned from a [RowIDFunc], never by a row's position on the page:
//
//	g, err := grid.New(ctx, grid.Config{
//	    Source: src,
//	    Schema: grid.StaticSchema(columns),
//	    RowID:  grid.FieldRowID("sku"),
//	})
//
// # Error Handling
//
// Backend failures never escape into rendering code. Fetch failures are
// recorded on the [View] as a [*FetchError] and the previous rows stay
// visible. Commit failures come back as [*CommitError] and keep the row's
// edits for a retry. Missing optional capabilities report [ErrUnsupportedOperation].
// [MapError] turns any of these into a [UserMessage] with a support code.
package grid
