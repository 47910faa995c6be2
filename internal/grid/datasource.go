package grid

import (
	"context"
	"errors"
	"sort"
)

// DataSource is the one mandatory backend operation: fetch a page of rows.
type DataSource interface {
	Fetch(ctx context.Context, p Params) (*Result, error)
}

// Creator is implemented by sources that can insert rows.
// The returned row carries the id assigned by the backend.
type Creator interface {
	Create(ctx context.Context, row Row) (Row, error)
}

// Updater is implemented by sources that can apply partial changes to a row.
type Updater interface {
	Update(ctx context.Context, id string, changes Row) (Row, error)
}

// Deleter is implemented by sources that can remove a single row.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// BulkDeleter is implemented by sources with a native bulk delete.
type BulkDeleter interface {
	BulkDelete(ctx context.Context, ids []string) (BulkResult, error)
}

// BatchUpdater is implemented by sources with a native batch update.
type BatchUpdater interface {
	BatchUpdate(ctx context.Context, updates []RowUpdate) (BulkResult, error)
}

// Capabilities lists which optional operations a source supports.
type Capabilities struct {
	Create      bool `json:"create"`
	Update      bool `json:"update"`
	Delete      bool `json:"delete"`
	BulkDelete  bool `json:"bulkDelete"`
	BatchUpdate bool `json:"batchUpdate"`
}

type capabilityReporter interface {
	Capabilities() Capabilities
}

// CapabilitiesOf reports the operations ds can perform. Bulk operations count
// as supported when the single-row operation they fall back to is.
func CapabilitiesOf(ds DataSource) Capabilities {
	if r, ok := ds.(capabilityReporter); ok {
		return r.Capabilities()
	}
	_, create := ds.(Creator)
	_, update := ds.(Updater)
	_, del := ds.(Deleter)
	_, bulkDel := ds.(BulkDeleter)
	_, batch := ds.(BatchUpdater)
	return Capabilities{
		Create:      create,
		Update:      update,
		Delete:      del,
		BulkDelete:  bulkDel || del,
		BatchUpdate: batch || update,
	}
}

// Create inserts row through ds.
func Create(ctx context.Context, ds DataSource, row Row) (Row, error) {
	c, ok := ds.(Creator)
	if !ok {
		return nil, &UnsupportedError{Op: "create"}
	}
	return c.Create(ctx, row)
}

// Update applies changes to the row with the given id through ds.
func Update(ctx context.Context, ds DataSource, id string, changes Row) (Row, error) {
	u, ok := ds.(Updater)
	if !ok {
		return nil, &UnsupportedError{Op: "update"}
	}
	return u.Update(ctx, id, changes)
}

// Delete removes the row with the given id through ds.
func Delete(ctx context.Context, ds DataSource, id string) error {
	d, ok := ds.(Deleter)
	if !ok {
		return &UnsupportedError{Op: "delete"}
	}
	return d.Delete(ctx, id)
}

// BulkDelete removes ids through the native bulk operation when ds has one,
// otherwise one Delete per id.
func BulkDelete(ctx context.Context, ds DataSource, ids []string) (BulkResult, error) {
	if b, ok := ds.(BulkDeleter); ok {
		return b.BulkDelete(ctx, ids)
	}
	d, ok := ds.(Deleter)
	if !ok {
		return BulkResult{}, &UnsupportedError{Op: "bulkDelete"}
	}
	return sequentialDelete(ctx, d, ids)
}

// BatchUpdate applies updates through the native batch operation when ds has
// one, otherwise one Update per row.
func BatchUpdate(ctx context.Context, ds DataSource, updates []RowUpdate) (BulkResult, error) {
	if b, ok := ds.(BatchUpdater); ok {
		return b.BatchUpdate(ctx, updates)
	}
	u, ok := ds.(Updater)
	if !ok {
		return BulkResult{}, &UnsupportedError{Op: "batchUpdate"}
	}
	return sequentialUpdate(ctx, u, updates)
}

// sequentialDelete deletes ids one by one. A cancelled context stops the loop
// and is returned alongside the partial result.
func sequentialDelete(ctx context.Context, d Deleter, ids []string) (BulkResult, error) {
	var res BulkResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := d.Delete(ctx, id); err != nil {
			res.addFailure(id, err)
			continue
		}
		res.addSuccess()
	}
	return res, nil
}

func sequentialUpdate(ctx context.Context, u Updater, updates []RowUpdate) (BulkResult, error) {
	var res BulkResult
	for _, up := range updates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := u.Update(ctx, up.ID, up.Changes); err != nil {
			res.addFailure(up.ID, err)
			continue
		}
		res.addSuccess()
	}
	return res, nil
}

// Failed returns the ids of failed items in sorted order.
func (r BulkResult) Failed() []string {
	ids := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		ids[i] = e.ID
	}
	sort.Strings(ids)
	return ids
}

// Err returns a joined error of every failed item, or nil.
func (r BulkResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = &CommitError{RowID: e.ID, Err: errors.New(e.Message)}
	}
	return errors.Join(errs...)
}
