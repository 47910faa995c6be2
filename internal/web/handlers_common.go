package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// RowsResponse is the paged envelope returned by GET rows. Its field names
// are among the aliases grid.NormalizeResult understands.
type RowsResponse struct {
	Items       []grid.Row `json:"items"`
	TotalCount  int        `json:"totalCount"`
	CurrentPage int        `json:"currentPage"`
	PerPage     int        `json:"perPage"`
	TotalPages  int        `json:"totalPages"`
}

// GridInfo describes one registered grid.
type GridInfo struct {
	Key          string            `json:"key"`
	Label        string            `json:"label"`
	Description  string            `json:"description,omitempty"`
	Capabilities grid.Capabilities `json:"capabilities"`
}

// SchemaResponse is returned by GET schema.
type SchemaResponse struct {
	GridInfo
	Columns []grid.ColumnDefinition `json:"columns"`
}

func infoOf(def grid.Definition) GridInfo {
	return GridInfo{
		Key:          def.Key,
		Label:        def.Label,
		Description:  def.Description,
		Capabilities: grid.CapabilitiesOf(def.Source),
	}
}

// gridFor resolves the {gridKey} URL parameter and the grid's schema.
// Schemas are loaded once per grid.
func (s *Server) gridFor(r *http.Request) (grid.Definition, *grid.Schema, error) {
	def, err := s.registry.Lookup(chi.URLParam(r, "gridKey"))
	if err != nil {
		return grid.Definition{}, nil, err
	}
	if cached, ok := s.schemas.Load(def.Key); ok {
		return def, cached.(*grid.Schema), nil
	}
	schema, err := grid.LoadSchema(r.Context(), def.Schema)
	if err != nil {
		return grid.Definition{}, nil, err
	}
	s.schemas.Store(def.Key, schema)
	return def, schema, nil
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// checkEditable rejects changes to columns that are not editable.
func checkEditable(schema *grid.Schema, changes grid.Row) error {
	if schema.Len() == 0 {
		return nil
	}
	var errs grid.ValidationErrors
	keys := make([]string, 0, len(changes))
	for key := range changes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if col, ok := schema.Column(key); ok && !col.Editable {
			errs = append(errs, grid.ValidationError{Column: key, Message: grid.ErrColumnNotEditable.Error()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateChanges runs editability and schema checks for one update.
func validateChanges(schema *grid.Schema, changes grid.Row) error {
	if schema.Len() == 0 {
		return nil
	}
	if len(changes) == 0 {
		return grid.ValidationErrors{{Message: "no changes"}}
	}
	if err := checkEditable(schema, changes); err != nil {
		return err
	}
	return schema.Validate(changes, nil)
}

// formatCellForExport renders a cell for CSV export. Column formatters win.
func formatCellForExport(col grid.ColumnDefinition, v any) string {
	if col.Format != nil {
		return col.Format(v)
	}
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case time.Time:
		if val.IsZero() {
			return ""
		}
		if col.Type == grid.FieldDateTime {
			return val.Format(time.RFC3339)
		}
		return val.Format("2006-01-02")
	case float64:
		if col.Type == grid.FieldCurrency {
			return fmt.Sprintf("%.2f", val)
		}
	case []string, []any:
		out := ""
		for i, s := range grid.ToStrings(val) {
			if i > 0 {
				out += ";"
			}
			out += s
		}
		return out
	}
	return grid.Stringify(v)
}

// boundedContext applies timeout to ctx when it is positive.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
