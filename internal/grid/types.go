package grid

import (
	"fmt"
	"time"
)

// Row is a single domain record keyed by column key.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowIDFunc returns the stable identifier of a row.
type RowIDFunc func(Row) string

// FieldRowID returns a RowIDFunc reading the given field.
// Missing or nil values produce an empty id.
func FieldRowID(field string) RowIDFunc {
	return func(r Row) string {
		v, ok := r[field]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
}

// DefaultRowID reads the "id" field.
var DefaultRowID = FieldRowID("id")

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is one key of an ordered sort specification.
type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Pagination is the requested page window. Page is 1-based.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// NumberRange filters number and currency columns. Nil bounds are open.
type NumberRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// DateRange filters date and datetime columns. Nil bounds are open.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// TableState is the canonical query and selection state of one grid.
type TableState struct {
	Pagination Pagination          `json:"pagination"`
	Sorting    []Sort              `json:"sorting"`
	Filters    map[string]any      `json:"filters"`
	Search     string              `json:"search"`
	Selection  map[string]struct{} `json:"-"`
}

// clone returns a deep copy of the collections held by the state.
// Filter values themselves are shared.
func (s TableState) clone() TableState {
	out := s
	out.Sorting = append([]Sort(nil), s.Sorting...)
	out.Filters = make(map[string]any, len(s.Filters))
	for k, v := range s.Filters {
		out.Filters[k] = v
	}
	out.Selection = make(map[string]struct{}, len(s.Selection))
	for id := range s.Selection {
		out.Selection[id] = struct{}{}
	}
	return out
}

// Params is what the engine hands to DataSource.Fetch.
// Filters are passed through raw; each source translates them.
type Params struct {
	Pagination Pagination     `json:"pagination"`
	Sorting    []Sort         `json:"sorting,omitempty"`
	Filters    map[string]any `json:"filters,omitempty"`
	Search     string         `json:"search,omitempty"`
}

// Offset returns the number of rows to skip for the requested page.
func (p Params) Offset() int {
	if p.Pagination.Page < 1 || p.Pagination.PageSize < 1 {
		return 0
	}
	return (p.Pagination.Page - 1) * p.Pagination.PageSize
}

// Result is the canonical response shape of DataSource.Fetch.
type Result struct {
	Rows       []Row `json:"rows"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// NewResult builds a Result and derives TotalPages as ceil(total/pageSize).
func NewResult(rows []Row, total, page, pageSize int) *Result {
	return &Result{
		Rows:       rows,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
	}
}

// TotalPages returns ceil(total/pageSize), or 0 when pageSize is not positive.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// RowUpdate is one entry of a batch update.
type RowUpdate struct {
	ID      string `json:"id"`
	Changes Row    `json:"changes"`
}

// BulkError is the failure of a single item of a bulk operation.
type BulkError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BulkResult is the outcome of bulkDelete, batchUpdate, and commitAll.
// Success is true only if at least one item succeeded. Errors is nil unless
// at least one item failed.
type BulkResult struct {
	Success  bool        `json:"success"`
	Affected int         `json:"affected"`
	Errors   []BulkError `json:"errors,omitempty"`
}

// addFailure records a failed item.
func (r *BulkResult) addFailure(id string, err error) {
	r.Errors = append(r.Errors, BulkError{ID: id, Message: err.Error()})
}

// addSuccess records a successful item.
func (r *BulkResult) addSuccess() {
	r.Affected++
	r.Success = true
}
