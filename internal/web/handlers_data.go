package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/logging"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "grids": len(s.registry.Keys())})
}

// handleListGrids lists every registered grid with its capabilities.
func (s *Server) handleListGrids(w http.ResponseWriter, r *http.Request) {
	defs := s.registry.All()
	out := make([]GridInfo, len(defs))
	for i, def := range defs {
		out[i] = infoOf(def)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	def, schema, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SchemaResponse{GridInfo: infoOf(def), Columns: schema.Columns()})
}

// handleRows serves one page of rows. The query string follows
// grid.EncodeQuery.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	def, schema, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	params, err := s.decodeParams(r, schema)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := boundedContext(r.Context(), s.cfg.Grid.FetchTimeout)
	defer cancel()
	res, err := def.Source.Fetch(ctx, params)
	if err != nil {
		respondError(w, r, err)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = []grid.Row{}
	}
	writeJSON(w, http.StatusOK, RowsResponse{
		Items:       rows,
		TotalCount:  res.Total,
		CurrentPage: res.Page,
		PerPage:     res.PageSize,
		TotalPages:  res.TotalPages,
	})
}

func (s *Server) decodeParams(r *http.Request, schema *grid.Schema) (grid.Params, error) {
	defaults := grid.Pagination{Page: 1, PageSize: s.cfg.Grid.DefaultPageSize}
	params, err := grid.DecodeQuery(r.URL.Query(), schema, defaults)
	if err != nil {
		return params, err
	}
	if max := s.cfg.Grid.MaxPageSize; max > 0 && params.Pagination.PageSize > max {
		return params, fmt.Errorf("%w: page size %d exceeds maximum %d",
			grid.ErrInvalidPagination, params.Pagination.PageSize, max)
	}
	return params, nil
}

// handleExport streams every row matching the query's filters, search, and
// sort as CSV, paging through the source.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	def, schema, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	params, err := s.decodeParams(r, schema)
	if err != nil {
		respondError(w, r, err)
		return
	}
	params.Pagination = grid.Pagination{Page: 1, PageSize: s.cfg.Grid.MaxPageSize}
	if params.Pagination.PageSize <= 0 {
		params.Pagination.PageSize = grid.DefaultPageSize
	}

	ctx, cancel := boundedContext(r.Context(), s.cfg.Grid.FetchTimeout*10)
	defer cancel()

	// Fetch the first page before writing headers so errors still get a status.
	res, err := def.Source.Fetch(ctx, params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	cols := schema.Columns()
	timestamp := time.Now().Format("20060102_150405")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.csv"`, def.Key, timestamp))

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Header
	}
	if err := cw.Write(header); err != nil {
		return
	}

	rowCount := 0
	for {
		for _, row := range res.Rows {
			record := make([]string, len(cols))
			for i, c := range cols {
				record[i] = formatCellForExport(c, row[c.Key])
			}
			if err := cw.Write(record); err != nil {
				return
			}
			rowCount++
		}
		cw.Flush()
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		if len(res.Rows) == 0 || params.Pagination.Page >= res.TotalPages {
			break
		}
		params.Pagination.Page++
		if res, err = def.Source.Fetch(ctx, params); err != nil {
			// Headers are already sent.
			logging.FromContext(r.Context()).Error("export aborted",
				"grid", def.Key, "rows", rowCount, "error", err)
			return
		}
	}
	logging.FromContext(r.Context()).Info("export complete", "grid", def.Key, "rows", rowCount)
}
