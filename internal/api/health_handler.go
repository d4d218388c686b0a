package api

import (
	"log/slog"
	"net/http"

	"github.com/docsmith/docex-api/internal/api/shared"
	"github.com/docsmith/docex-api/internal/store"
)

// QueueStats exposes queue pressure for the detailed health probe.
type QueueStats interface {
	QueueDepth() int
	QueueCapacity() int
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store  store.TaskStore
	queue  QueueStats
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(taskStore store.TaskStore, queue QueueStats, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for HealthHandler")
	}

	return &HealthHandler{
		store:  taskStore,
		queue:  queue,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// DetailedHealth handles GET /health/detailed requests. It pings the task
// store and reports queue depth; an unreachable store yields 503.
func (h *HealthHandler) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	resp := DetailedHealthResponse{
		Status:        "ok",
		Store:         "ok",
		QueueDepth:    h.queue.QueueDepth(),
		QueueCapacity: h.queue.QueueCapacity(),
	}

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("task store ping failed", slog.String("error", err.Error()))
		resp.Status = "degraded"
		resp.Store = "unreachable"
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
