package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cvette/pmflow/internal/pool"
)

// StatsProvider reports the state of the worker pool.
type StatsProvider interface {
	Stats() pool.Stats
}

type healthResponse struct {
	Status  string      `json:"status"`
	Workers workerStats `json:"workers"`
}

type workerStats struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
	Max      int32 `json:"max"`
}

// HealthHandler reports liveness together with the pool state.
type HealthHandler struct {
	stats StatsProvider
}

func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	res := healthResponse{Status: "ok"}

	if h.stats != nil {
		s := h.stats.Stats()
		res.Workers = workerStats{
			Total:    s.Total,
			Idle:     s.Idle,
			Acquired: s.Acquired,
			Max:      s.MaxSize,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}
