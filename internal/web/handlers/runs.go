package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/audit"
)

// RunStore reads stored mapping runs.
type RunStore interface {
	RecentRuns(ctx context.Context, limit int) ([]audit.RunSummary, error)
	RunCoverage(ctx context.Context, runID uuid.UUID) ([]audit.CoverageEntry, error)
}

// RunsHandler exposes the audit history.
type RunsHandler struct {
	Store  RunStore
	Logger *zap.Logger
}

// ListRuns returns the latest runs. ?limit=n caps the result.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := h.Store.RecentRuns(r.Context(), limit)
	if err != nil {
		h.Logger.Error("Failed to list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if runs == nil {
		runs = []audit.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetCoverage returns the per-dataset coverage of one run.
func (h *RunsHandler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	entries, err := h.Store.RunCoverage(r.Context(), runID)
	if err != nil {
		h.Logger.Error("Failed to load coverage", zap.String("run_id", runID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
