package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/KanavDutta/tokenfence/metrics"
	"github.com/KanavDutta/tokenfence/store"
)

// SnapshotProvider defines the interface for getting aggregated stats
type SnapshotProvider interface {
	GetSnapshot() *metrics.Snapshot
}

// HistoryProvider returns stored windows of a limiter, newest first
type HistoryProvider interface {
	History(ctx context.Context, name string, n int) ([]store.Record, error)
}

// StatsHandler serves aggregated and historical window stats
type StatsHandler struct {
	provider SnapshotProvider
	history  HistoryProvider
	limiters Lookup
}

// NewStatsHandler creates a new stats handler. limiters may be nil, in
// which case history is served for any name.
func NewStatsHandler(provider SnapshotProvider, history HistoryProvider, limiters Lookup) *StatsHandler {
	return &StatsHandler{
		provider: provider,
		history:  history,
		limiters: limiters,
	}
}

// Register mounts the stats routes on mux.
func (h *StatsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /stats", h.Stats)
	mux.HandleFunc("GET /stats/{name}/history", h.History)
}

// Stats handles GET /stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	sendJSON(w, http.StatusOK, h.provider.GetSnapshot())
}

// History handles GET /stats/{name}/history?n=10
func (h *StatsHandler) History(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)

	name := r.PathValue("name")
	if h.limiters != nil {
		if _, ok := h.limiters.Get(name); !ok {
			sendError(w, http.StatusNotFound, "unknown_limiter", "no limiter named "+name)
			return
		}
	}

	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			sendError(w, http.StatusBadRequest, "invalid_request", "n must be a non-negative integer")
			return
		}
		n = v
	}

	records, err := h.history.History(r.Context(), name, n)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}

	sendJSON(w, http.StatusOK, records)
}
