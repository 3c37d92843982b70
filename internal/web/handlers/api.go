package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/engine"
	"github.com/geo-mapper/internal/match"
	"github.com/geo-mapper/internal/normalize"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 32 << 20

// APIHandler serves the resolver over HTTP. Datasets are loaded once at
// startup and shared read-only between requests.
type APIHandler struct {
	Datasets []*match.Dataset
	Resolver *match.Resolver
	Manual   *match.Manual
	Mapping  config.MappingConfig
	Logger   *zap.Logger
	Started  time.Time
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// HealthResponse reports service status.
type HealthResponse struct {
	Status   string `json:"status"`
	Datasets int    `json:"datasets"`
	Uptime   string `json:"uptime"`
}

// Health reports whether the service is up.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Datasets: len(h.Datasets),
		Uptime:   time.Since(h.Started).Round(time.Second).String(),
	})
}

// DatasetInfo summarizes one loaded geodata file.
type DatasetInfo struct {
	Source        string   `json:"source"`
	Name          string   `json:"name"`
	Family        string   `json:"family"`
	Level         string   `json:"level"`
	Year          string   `json:"year"`
	Vintage       int      `json:"vintage"`
	Entities      int      `json:"entities"`
	ReferenceRows int      `json:"reference_rows"`
	Columns       []string `json:"columns"`
}

// ListDatasets lists the loaded geodata catalogue.
func (h *APIHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	family := r.URL.Query().Get("family")
	out := make([]DatasetInfo, 0, len(h.Datasets))
	for _, ds := range h.Datasets {
		if family != "" && string(ds.Family) != family {
			continue
		}
		out = append(out, DatasetInfo{
			Source:        ds.Source,
			Name:          ds.Name(),
			Family:        string(ds.Family),
			Level:         engine.LevelFromPath(ds.Source),
			Year:          engine.YearFromPath(ds.Source),
			Vintage:       ds.Vintage,
			Entities:      len(ds.Entities),
			ReferenceRows: ds.ReferenceRows(),
			Columns:       ds.Columns,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// StrategyInfo describes one registered strategy.
type StrategyInfo struct {
	Name     string `json:"name"`
	Requires string `json:"requires"`
	Default  bool   `json:"default"`
}

// ListStrategies lists the registered strategies in default order.
func (h *APIHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	inDefault := make(map[string]bool, len(match.DefaultOrder))
	for _, name := range match.DefaultOrder {
		inDefault[name] = true
	}
	registry := h.Resolver.Registry()
	var out []StrategyInfo
	for _, name := range registry.Names() {
		s, _ := registry.Get(name)
		out = append(out, StrategyInfo{Name: name, Requires: s.Requires().String(), Default: inDefault[name]})
	}
	writeJSON(w, http.StatusOK, out)
}

// NormalizeRequest lists values to normalize.
type NormalizeRequest struct {
	Values []string `json:"values"`
}

// NormalizedValue shows every normalized form of one value.
type NormalizedValue struct {
	Input        string `json:"input"`
	Text         string `json:"text"`
	NoSpace      string `json:"no_space"`
	TokenSortKey string `json:"token_sort_key"`
	ID           string `json:"id"`
	IDStripped   string `json:"id_stripped"`
}

// Normalize returns the name and id normalizations of the given values.
func (h *APIHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !decode(w, r, &req) {
		return
	}
	out := make([]NormalizedValue, len(req.Values))
	for i, v := range req.Values {
		id, _ := normalize.ID(v, false)
		stripped, _ := normalize.ID(v, true)
		out[i] = NormalizedValue{
			Input:        v,
			Text:         normalize.Text(v),
			NoSpace:      normalize.NoSpace(v),
			TokenSortKey: normalize.TokenSortKey(v),
			ID:           id,
			IDStripped:   stripped,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// datasetsFor selects the datasets named in sources, or all of them.
func (h *APIHandler) datasetsFor(sources []string) ([]*match.Dataset, []string) {
	if len(sources) == 0 {
		return h.Datasets, nil
	}
	var selected []*match.Dataset
	var missing []string
	for _, source := range sources {
		found := false
		for _, ds := range h.Datasets {
			if ds.Source == source || ds.Name() == source {
				selected = append(selected, ds)
				found = true
			}
		}
		if !found {
			missing = append(missing, source)
		}
	}
	sort.Strings(missing)
	return selected, missing
}
