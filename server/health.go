package server

import (
	"context"
	"time"

	"github.com/pongarena/server/matchqueue"
	"github.com/pongarena/server/session"
)

// HealthResponse is the JSON shape of GET /healthcheck (spec §4.7).
type HealthResponse struct {
	Status       string       `json:"status"`
	Timestamp    time.Time    `json:"timestamp"`
	Dependencies dependencies `json:"dependencies"`
	Metrics      metrics      `json:"metrics"`
}

type dependencies struct {
	CoordStoreConnected bool   `json:"coordStoreConnected"`
	CoordStoreError     string `json:"coordStoreError,omitempty"`
}

type metrics struct {
	WaitingPlayers int `json:"waitingPlayers"`
	ActiveGames    int `json:"activeGames"`
}

// HealthChecker implements spec component C7.
type HealthChecker struct {
	queue matchqueue.Queue
	store *session.Store
}

// NewHealthChecker builds a HealthChecker over the shared queue and store.
func NewHealthChecker(queue matchqueue.Queue, store *session.Store) *HealthChecker {
	return &HealthChecker{queue: queue, store: store}
}

// Check reports liveness, queue depth, and active game count. Status is
// "Healthy" iff the coordination store is reachable and its queries
// succeed; otherwise "Degraded".
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Timestamp: time.Now().UTC(),
		Metrics:   metrics{ActiveGames: h.store.Count()},
	}

	if err := h.queue.Ping(ctx); err != nil {
		resp.Status = "Degraded"
		resp.Dependencies = dependencies{CoordStoreConnected: false, CoordStoreError: err.Error()}
		return resp
	}

	depth, err := h.queue.Depth(ctx)
	if err != nil {
		resp.Status = "Degraded"
		resp.Dependencies = dependencies{CoordStoreConnected: true, CoordStoreError: err.Error()}
		return resp
	}

	resp.Status = "Healthy"
	resp.Dependencies = dependencies{CoordStoreConnected: true}
	resp.Metrics.WaitingPlayers = depth
	return resp
}
