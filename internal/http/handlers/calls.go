package handlers

import (
	"errors"
	"net/http"

	"github.com/callthedoctor/call-relay/internal/call"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

// CallHandler exposes call initiation and rejection over HTTP. The workflow
// engine drives both on behalf of the voice agent.
type CallHandler struct {
	router *call.Router
	logger *logging.Logger
}

// NewCallHandler creates a call handler.
func NewCallHandler(router *call.Router, logger *logging.Logger) *CallHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CallHandler{router: router, logger: logger}
}

// Initiate handles POST /api/initiate-call.
func (h *CallHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req call.InitiateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.router.Initiate(r.Context(), req)
	if err != nil {
		var verr *call.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Error("call initiation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to initiate call")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"callId":        res.CallID,
		"notifiedCount": res.NotifiedCount,
	})
}

// Reject handles POST /api/reject-call. Rejection is always acknowledged:
// downstream bookkeeping failures degrade to logs inside the router.
func (h *CallHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req call.RejectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.router.Reject(r.Context(), req)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Call rejected",
	})
}
