// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// StatsProvider supplies a point-in-time snapshot of engine counters:
// lifecycle state, queue depth, worker sizing and tracked subjects.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler exposes the engine snapshot for quick operational checks.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests with the current snapshot.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
