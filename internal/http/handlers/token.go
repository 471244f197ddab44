package handlers

import (
	"net/http"

	"github.com/callthedoctor/call-relay/internal/call"
	"github.com/callthedoctor/call-relay/internal/realtime"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

// TokenHandler mints ephemeral speech-session credentials for browser
// clients. The long-lived API key never leaves the server.
type TokenHandler struct {
	realtime *realtime.Client
	logger   *logging.Logger
}

// NewTokenHandler creates a token handler.
func NewTokenHandler(client *realtime.Client, logger *logging.Logger) *TokenHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TokenHandler{realtime: client, logger: logger}
}

// Mint handles POST /api/get-ephemeral-token.
func (h *TokenHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientName string `json:"patientName"`
		DoctorName  string `json:"doctorName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if h.realtime == nil || !h.realtime.Configured() {
		writeError(w, http.StatusInternalServerError, "speech service not configured")
		return
	}

	secret, err := h.realtime.MintToken(r.Context(), req.PatientName, req.DoctorName)
	if err != nil {
		// credential issuance is on the critical path: the browser call
		// cannot proceed without it, so the failure surfaces
		uerr := &call.UpstreamServiceError{Service: "speech service", Err: err}
		h.logger.Error("failed to mint session token", "error", uerr)
		writeError(w, http.StatusInternalServerError, "failed to create session token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"client_secret": secret,
	})
}
