// Package doctorws is the WebSocket transport for doctor clients. Each
// connection registers one or more doctor identities and receives call
// offers; inbound frames carry call decisions and live transcript lines.
package doctorws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/callthedoctor/call-relay/internal/call"
	"github.com/callthedoctor/call-relay/internal/observability/metrics"
	"github.com/callthedoctor/call-relay/internal/registry"
	"github.com/callthedoctor/call-relay/internal/transcripts"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

// Reconciler consumes an ended call's transcript. The call router never
// waits on it.
type Reconciler interface {
	Run(ctx context.Context, callID string)
}

// frame is the envelope of every inbound WebSocket message.
type frame struct {
	Type      string `json:"type"`
	DoctorID  string `json:"doctorId,omitempty"`
	CallID    string `json:"callId,omitempty"`
	PatientID string `json:"patientId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Handler upgrades doctor connections and runs their read loops.
type Handler struct {
	registry    registry.Registry
	router      *call.Router
	reconciler  Reconciler
	transcripts *transcripts.Store
	metrics     *metrics.CallMetrics
	logger      *logging.Logger
	upgrader    websocket.Upgrader
}

// HandlerConfig wires the transport's collaborators.
type HandlerConfig struct {
	Registry    registry.Registry
	Router      *call.Router
	Reconciler  Reconciler
	Transcripts *transcripts.Store
	Metrics     *metrics.CallMetrics
	Logger      *logging.Logger
	// CheckOrigin overrides the upgrade origin policy. Defaults to
	// allowing all origins; the browser clients run on a separate host.
	CheckOrigin func(r *http.Request) bool
}

// NewHandler creates the WebSocket handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Registry == nil {
		panic("doctorws: registry is required")
	}
	if cfg.Router == nil {
		panic("doctorws: call router is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		registry:    cfg.Registry,
		router:      cfg.Router,
		reconciler:  cfg.Reconciler,
		transcripts: cfg.Transcripts,
		metrics:     cfg.Metrics,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP upgrades the request and serves the connection until the client
// goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := newConn(ws)
	go c.writePump()
	h.readLoop(r.Context(), c)
}

func (h *Handler) readLoop(ctx context.Context, c *conn) {
	defer func() {
		c.close()
		h.registry.Unregister(c)
		h.metrics.SetConnectedDoctors(h.registry.Count())
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			h.logger.Warn("unparseable websocket frame", "error", err)
			continue
		}
		h.dispatch(ctx, c, f)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *conn, f frame) {
	switch f.Type {
	case "register":
		h.handleRegister(c, f)
	case "call_accepted":
		if err := h.router.Accept(ctx, f.CallID); err != nil {
			h.logger.Warn("call accept refused", "call_id", f.CallID, "error", err)
		}
	case "call_rejected":
		h.router.Reject(ctx, call.RejectRequest{
			CallID:    f.CallID,
			PatientID: f.PatientID,
			DoctorID:  f.DoctorID,
			Reason:    f.Reason,
		})
	case "call_ended":
		if err := h.router.End(f.CallID); err != nil {
			h.logger.Warn("call end refused", "call_id", f.CallID, "error", err)
			return
		}
		if h.reconciler != nil {
			// reconciliation outlives the request context
			go h.reconciler.Run(context.WithoutCancel(ctx), f.CallID)
		}
	case "transcript":
		h.handleTranscript(ctx, f)
	default:
		h.logger.Debug("ignoring unknown frame type", "type", f.Type)
	}
}

func (h *Handler) handleRegister(c *conn, f frame) {
	if f.DoctorID == "" {
		h.logger.Warn("register frame without doctor id")
		return
	}
	h.registry.Register(f.DoctorID, c)
	h.metrics.SetConnectedDoctors(h.registry.Count())
	h.logger.Info("doctor registered", "doctor_id", f.DoctorID, "connected", h.registry.Count())
	if err := c.Send(map[string]string{
		"type":      "registration_confirmed",
		"doctorId":  f.DoctorID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		h.logger.Warn("failed to confirm registration", "doctor_id", f.DoctorID, "error", err)
	}
}

func (h *Handler) handleTranscript(ctx context.Context, f frame) {
	if f.CallID == "" || f.Text == "" {
		return
	}
	entry := transcripts.Entry{
		Speaker:   f.Speaker,
		Text:      f.Text,
		Timestamp: time.Now().UTC(),
	}
	if err := h.transcripts.Append(ctx, f.CallID, entry); err != nil {
		h.logger.Warn("failed to buffer transcript line", "call_id", f.CallID, "error", err)
	}
}
