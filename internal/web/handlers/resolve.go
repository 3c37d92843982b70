package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/engine"
	"github.com/geo-mapper/internal/match"
)

// ResolveRequest carries an input table and its column selection.
type ResolveRequest struct {
	Columns      []string   `json:"columns"`
	Rows         [][]string `json:"rows"`
	IDColumns    []string   `json:"id_columns"`
	NameColumn   string     `json:"name_column"`
	ValueColumns []string   `json:"value_columns"`
	Mappers      []string   `json:"mappers"`
	// Sources restricts resolution to these datasets (path or file name).
	Sources        []string             `json:"sources"`
	InitialUsed    map[string][]string  `json:"initial_used"`
	ManualMappings []config.ManualEntry `json:"manual_mappings"`
	// ExportSource receives the manual mappings; empty picks the best ranked
	// dataset.
	ExportSource string `json:"export_source"`
}

// DatasetResponse is the outcome for one dataset.
type DatasetResponse struct {
	Source   string                `json:"source"`
	Rank     int                   `json:"rank"`
	Selected bool                  `json:"selected"`
	Coverage match.Coverage        `json:"coverage"`
	Shares   map[string]float64    `json:"shares"`
	Steps    []match.StepStat      `json:"steps"`
	Records  map[int]match.Mapping `json:"records"`
}

// ResolveResponse is the outcome of one resolution request.
type ResolveResponse struct {
	Strategies  []string          `json:"strategies"`
	Skipped     []string          `json:"skipped"`
	TotalRows   int               `json:"total_rows"`
	ManualBound int               `json:"manual_bound"`
	DurationMS  int64             `json:"duration_ms"`
	Datasets    []DatasetResponse `json:"datasets"`
}

// Resolve runs the resolver over the posted rows.
func (h *APIHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, http.StatusBadRequest, "columns must not be empty")
		return
	}

	input := match.NewTable(req.Columns, req.Rows)
	columns := match.ColumnSpec{IDColumns: req.IDColumns, NameColumn: req.NameColumn, ValueColumns: req.ValueColumns}
	if len(columns.IDColumns) == 0 && columns.NameColumn == "" {
		columns.NameColumn = req.Columns[0]
	}
	columns, err := engine.UsableColumns(input, columns, h.Logger)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	datasets, missing := h.datasetsFor(req.Sources)
	if len(missing) > 0 {
		writeError(w, http.StatusNotFound, "unknown datasets: "+strings.Join(missing, ", "))
		return
	}

	mappers := req.Mappers
	if len(mappers) == 0 {
		mappers = h.Mapping.Mappers
	}
	result, err := h.Resolver.Resolve(r.Context(), input, columns, datasets, match.Options{
		Strategies:  mappers,
		InitialUsed: req.InitialUsed,
		Parallelism: h.Mapping.Parallelism,
	})
	switch {
	case errors.Is(err, match.ErrNothingToDo), errors.Is(err, match.ErrUnknownStrategy):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.Logger.Error("Resolution failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "resolution failed")
		return
	}

	selected, err := engine.SelectExportSource(result, req.ExportSource, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ResolveResponse{
		Strategies: result.Strategies,
		Skipped:    result.Skipped,
		TotalRows:  result.TotalRows,
		DurationMS: result.Duration.Milliseconds(),
	}
	if selected != nil && len(req.ManualMappings) > 0 {
		meta := config.Meta{ManualMappings: req.ManualMappings}
		resp.ManualBound = h.Manual.Apply(input, columns, selected, meta.Manual())
	}

	rank := make(map[*match.DatasetResult]int)
	for i, dr := range engine.RankDatasets(result) {
		rank[dr] = i + 1
	}
	for _, dr := range result.Datasets {
		records := make(map[int]match.Mapping, dr.Records.Len())
		for _, index := range dr.Records.Rows() {
			records[index], _ = dr.Records.Get(index)
		}
		resp.Datasets = append(resp.Datasets, DatasetResponse{
			Source:   dr.Dataset.Source,
			Rank:     rank[dr],
			Selected: dr == selected,
			Coverage: dr.Coverage,
			Shares: map[string]float64{
				"input":     dr.Coverage.InputShare(),
				"reference": dr.Coverage.ReferenceShare(),
			},
			Steps:   dr.Steps,
			Records: records,
		})
	}

	h.Logger.Info("Resolved request",
		zap.Int("rows", len(input.Rows)),
		zap.Int("datasets", len(datasets)),
		zap.Int("manual", resp.ManualBound))
	writeJSON(w, http.StatusOK, resp)
}
