package handlers

import (
	"net/http"

	"github.com/callthedoctor/call-relay/internal/call"
)

// AdminSessionsHandler lists in-flight and recently terminated call
// sessions for operators.
type AdminSessionsHandler struct {
	sessions *call.Sessions
}

// NewAdminSessionsHandler creates an admin sessions handler.
func NewAdminSessionsHandler(sessions *call.Sessions) *AdminSessionsHandler {
	return &AdminSessionsHandler{sessions: sessions}
}

// List handles GET /admin/sessions.
func (h *AdminSessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.sessions.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": list,
		"total":    len(list),
	})
}
