package web

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/logging"
)

// handleCreateRow validates and inserts one row.
func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	def, schema, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var row grid.Row
	if err := decodeBody(w, r, &row); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if schema.Len() > 0 {
		if err := schema.ValidateRow(row); err != nil {
			respondError(w, r, err)
			return
		}
	}

	ctx, cancel := boundedContext(r.Context(), s.cfg.Grid.CommitTimeout)
	defer cancel()
	created, err := grid.Create(ctx, def.Source, row)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "grid", def.Key, "row_id", def.RowID(created)).Info("row created")
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateRow applies partial changes to one row.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	def, schema, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "rowID")

	var changes grid.Row
	if err := decodeBody(w, r, &changes); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateChanges(schema, changes); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := boundedContext(r.Context(), s.cfg.Grid.CommitTimeout)
	defer cancel()
	updated, err := grid.Update(ctx, def.Source, id, changes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "grid", def.Key, "row_id", id).Info("row updated", "columns", len(changes))
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	def, _, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "rowID")

	ctx, cancel := boundedContext(r.Context(), s.cfg.Grid.CommitTimeout)
	defer cancel()
	if err := grid.Delete(ctx, def.Source, id); err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "grid", def.Key, "row_id", id).Info("row deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleBulkDelete deletes many rows, natively when the source can and one
// by one otherwise.
func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	def, _, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusOK, grid.BulkResult{})
		return
	}

	ctx, cancel := boundedContext(r.Context(), s.cfg.Grid.CommitTimeout)
	defer cancel()
	res, err := grid.BulkDelete(ctx, def.Source, req.IDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "grid", def.Key).Info("bulk delete",
		"requested", len(req.IDs), "affected", res.Affected, "failed", len(res.Errors))
	writeJSON(w, http.StatusOK, res)
}

// handleBatchUpdate validates each update, sends the valid ones to the source,
// and reports rejected items alongside the source's own failures.
func (s *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	def, schema, err := s.gridFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		Updates []grid.RowUpdate `json:"updates"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var rejected []grid.BulkError
	valid := make([]grid.RowUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		if err := validateChanges(schema, u.Changes); err != nil {
			rejected = append(rejected, grid.BulkError{ID: u.ID, Message: err.Error()})
			continue
		}
		valid = append(valid, u)
	}

	var res grid.BulkResult
	if len(valid) > 0 {
		ctx, cancel := boundedContext(r.Context(), s.cfg.Grid.CommitTimeout)
		defer cancel()
		res, err = grid.BatchUpdate(ctx, def.Source, valid)
		if err != nil {
			respondError(w, r, err)
			return
		}
	}
	if len(rejected) > 0 {
		res.Errors = append(res.Errors, rejected...)
		sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].ID < res.Errors[j].ID })
	}

	logging.WithFields(r.Context(), "grid", def.Key).Info("batch update",
		"requested", len(req.Updates), "affected", res.Affected, "failed", len(res.Errors))
	writeJSON(w, http.StatusOK, res)
}
