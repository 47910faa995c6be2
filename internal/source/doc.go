// Package source provides concrete grid data sources.
//
//   - Memory: rows held in process, full CRUD plus native bulk operations.
//   - Persisted: a Memory source snapshotted to a storage.Store after every
//     write, the server-side counterpart of browser local storage.
//   - REST: an HTTP client for any backend speaking the grid query protocol.
//   - Postgres: a pgx-backed source that pushes filtering, sorting and
//     paging into SQL.
//
// Memory and Persisted share the in-process filter, search and sort rules in
// query.go so results match what Postgres computes in SQL.
package source
