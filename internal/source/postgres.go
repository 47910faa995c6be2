package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// DB is the subset of *pgxpool.Pool used by Postgres.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres serves one table. Schema column keys are the table's column
// names; filtering, search, sorting, and paging run in SQL.
type Postgres struct {
	db     DB
	table  string
	schema *grid.Schema
	idCol  string
}

// NewPostgres returns a source over table. idColumn defaults to "id".
func NewPostgres(db DB, table string, schema *grid.Schema, idColumn string) *Postgres {
	if idColumn == "" {
		idColumn = "id"
	}
	if schema == nil {
		schema, _ = grid.NewSchema(nil)
	}
	return &Postgres{db: db, table: table, schema: schema, idCol: idColumn}
}

func (s *Postgres) Capabilities() grid.Capabilities {
	return grid.Capabilities{Create: true, Update: true, Delete: true, BulkDelete: true, BatchUpdate: true}
}

// Fetch implements grid.DataSource.
func (s *Postgres) Fetch(ctx context.Context, p grid.Params) (*grid.Result, error) {
	q, err := s.buildQuery(p)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.QueryRow(ctx, q.count, q.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	rows, err := s.db.Query(ctx, q.sel, q.selArgs()...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	out, err := s.collect(rows)
	if err != nil {
		return nil, err
	}
	return grid.NewResult(out, int(total), q.page, q.size), nil
}

func (s *Postgres) Create(ctx context.Context, row grid.Row) (grid.Row, error) {
	r := row.Clone()
	if grid.IsEmpty(r[s.idCol]) {
		r[s.idCol] = uuid.NewString()
	}
	if err := s.checkColumns(r); err != nil {
		return nil, err
	}
	if s.schema.Len() > 0 {
		if err := s.schema.ValidateRow(r); err != nil {
			return nil, err
		}
	}

	keys := sortedRowKeys(r)
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = quoteIdentifier(k)
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = r[k]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoteIdentifier(s.table), strings.Join(cols, ", "), strings.Join(marks, ", "), s.selectList())

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("insert row: %w", err)
	}
	return s.one(rows, r[s.idCol])
}

func (s *Postgres) Update(ctx context.Context, id string, changes grid.Row) (grid.Row, error) {
	return s.update(ctx, s.db, id, changes)
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quoteIdentifier(s.table), s.idExpr())
	tag, err := s.db.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, grid.ErrRowNotFound)
	}
	return nil
}

// BulkDelete removes every id in one statement. Ids that matched no row are
// reported per item.
func (s *Postgres) BulkDelete(ctx context.Context, ids []string) (grid.BulkResult, error) {
	var res grid.BulkResult
	if len(ids) == 0 {
		return res, nil
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1) RETURNING %s",
		quoteIdentifier(s.table), s.idExpr(), s.idExpr())
	rows, err := s.db.Query(ctx, sql, ids)
	if err != nil {
		return res, fmt.Errorf("delete rows: %w", err)
	}
	deleted, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return res, fmt.Errorf("delete rows: %w", err)
	}

	gone := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		gone[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := gone[id]; !ok {
			res.Errors = append(res.Errors, grid.BulkError{ID: id, Message: grid.ErrRowNotFound.Error()})
		}
	}
	res.Affected = len(gone)
	res.Success = res.Affected > 0
	return res, nil
}

// BatchUpdate applies every update inside one transaction. Each item runs in
// a savepoint so a failed item is reported without aborting the rest.
func (s *Postgres) BatchUpdate(ctx context.Context, updates []grid.RowUpdate) (grid.BulkResult, error) {
	var res grid.BulkResult
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return grid.BulkResult{}, fmt.Errorf("savepoint: %w", err)
		}
		if _, err := s.update(ctx, sp, u.ID, u.Changes); err != nil {
			_ = sp.Rollback(ctx)
			res.Errors = append(res.Errors, grid.BulkError{ID: u.ID, Message: err.Error()})
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return grid.BulkResult{}, fmt.Errorf("release savepoint: %w", err)
		}
		res.Affected++
	}

	if err := tx.Commit(ctx); err != nil {
		return grid.BulkResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	res.Success = res.Affected > 0
	return res, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Postgres) update(ctx context.Context, db queryer, id string, changes grid.Row) (grid.Row, error) {
	set := changes.Clone()
	delete(set, s.idCol)
	if len(set) == 0 {
		return nil, grid.ValidationErrors{{Message: "no changes"}}
	}
	if err := s.checkColumns(set); err != nil {
		return nil, err
	}

	keys := sortedRowKeys(set)
	parts := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(k), i+1)
		args = append(args, set[k])
	}
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		quoteIdentifier(s.table), strings.Join(parts, ", "), s.idExpr(), len(args), s.selectList())

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("update row: %w", err)
	}
	return s.one(rows, id)
}

// checkColumns rejects keys the schema does not define. With an empty
// schema every key is allowed.
func (s *Postgres) checkColumns(r grid.Row) error {
	if s.schema.Len() == 0 {
		return nil
	}
	var errs grid.ValidationErrors
	for _, k := range sortedRowKeys(r) {
		if _, ok := s.schema.Column(k); !ok && k != s.idCol {
			errs = append(errs, grid.ValidationError{Column: k, Message: "unknown column"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *Postgres) one(rows pgx.Rows, id any) (grid.Row, error) {
	out, err := s.collect(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("row %v: %w", id, grid.ErrRowNotFound)
	}
	return out[0], nil
}

func (s *Postgres) collect(rows pgx.Rows) ([]grid.Row, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	var out []grid.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(grid.Row, len(values))
		for i, v := range values {
			row[fields[i].Name] = normalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if out == nil {
		out = []grid.Row{}
	}
	return out, nil
}

// normalizeValue converts driver types into the plain values rows carry.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(x).String()
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

func (s *Postgres) selectList() string {
	if s.schema.Len() == 0 {
		return "*"
	}
	keys := s.schema.Keys()
	cols := make([]string, 0, len(keys)+1)
	hasID := false
	for _, k := range keys {
		if k == s.idCol {
			hasID = true
		}
		cols = append(cols, quoteIdentifier(k))
	}
	if !hasID {
		cols = append([]string{quoteIdentifier(s.idCol)}, cols...)
	}
	return strings.Join(cols, ", ")
}

func (s *Postgres) idExpr() string {
	return quoteIdentifier(s.idCol) + "::text"
}

// quoteIdentifier safely quotes a SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sortedRowKeys(r grid.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
