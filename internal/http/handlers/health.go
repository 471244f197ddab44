package handlers

import (
	"net/http"

	"github.com/callthedoctor/call-relay/internal/appointments"
	"github.com/callthedoctor/call-relay/internal/realtime"
	"github.com/callthedoctor/call-relay/internal/registry"
)

// HealthHandler reports liveness plus the reachability facts operators
// actually page on.
type HealthHandler struct {
	registry registry.Registry
	realtime *realtime.Client
	store    appointments.Store
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(reg registry.Registry, rt *realtime.Client, store appointments.Store) *HealthHandler {
	return &HealthHandler{registry: reg, realtime: rt, store: store}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"connectedDoctors": h.registry.Count(),
		"openai":           h.realtime != nil && h.realtime.Configured(),
		"store":            h.store != nil && h.store.Configured(),
	})
}
