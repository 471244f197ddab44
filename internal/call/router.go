package call

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/callthedoctor/call-relay/internal/appointments"
	"github.com/callthedoctor/call-relay/internal/observability/metrics"
	"github.com/callthedoctor/call-relay/internal/registry"
	"github.com/callthedoctor/call-relay/internal/transcripts"
	"github.com/callthedoctor/call-relay/internal/workflow"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

var routerTracer = otel.Tracer("callrelay.internal.call")

// InitiateRequest is the inbound call request. Identities are opaque
// strings from the caller's perspective; the record store resolves them to
// integer keys.
type InitiateRequest struct {
	DoctorID        string `json:"doctorId"`
	PatientID       string `json:"patientId"`
	DoctorName      string `json:"doctorName,omitempty"`
	PatientName     string `json:"patientName,omitempty"`
	AppointmentType string `json:"appointmentType,omitempty"`
	Symptoms        string `json:"symptoms,omitempty"`
}

// InitiateResult reports the outcome of an initiate-call request. A stored
// appointment with zero notified endpoints is a partial success, not an
// error.
type InitiateResult struct {
	CallID        string
	NotifiedCount int
	AppointmentID int64
	Stored        bool
}

// RejectRequest is the doctor-side decline.
type RejectRequest struct {
	CallID    string `json:"callId"`
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId"`
	Reason    string `json:"reason,omitempty"`
}

// Offer is the call-offer notification broadcast to doctor endpoints.
type Offer struct {
	Type            string `json:"type"`
	CallID          string `json:"callId"`
	PatientID       string `json:"patientId"`
	PatientName     string `json:"patientName"`
	DoctorID        string `json:"doctorId"`
	DoctorName      string `json:"doctorName,omitempty"`
	AppointmentType string `json:"appointmentType,omitempty"`
	Symptoms        string `json:"symptoms,omitempty"`
	AppointmentID   int64  `json:"appointmentId,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// Router orchestrates the call lifecycle: placeholder persistence, doctor
// notification, session transitions, and outcome recording.
type Router struct {
	registry    registry.Registry
	store       appointments.Store
	sessions    *Sessions
	notifier    workflow.Notifier
	transcripts *transcripts.Store
	metrics     *metrics.CallMetrics
	logger      *logging.Logger
	ringTimeout time.Duration

	now       func() time.Time
	newCallID func() string
}

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Registry    registry.Registry
	Store       appointments.Store
	Sessions    *Sessions
	Notifier    workflow.Notifier
	Transcripts *transcripts.Store
	Metrics     *metrics.CallMetrics
	Logger      *logging.Logger
	RingTimeout time.Duration
}

// NewRouter creates a call router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Registry == nil {
		panic("call: registry is required")
	}
	if cfg.Store == nil {
		panic("call: appointment store is required")
	}
	if cfg.Sessions == nil {
		panic("call: session table is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{
		registry:    cfg.Registry,
		store:       cfg.Store,
		sessions:    cfg.Sessions,
		notifier:    cfg.Notifier,
		transcripts: cfg.Transcripts,
		metrics:     cfg.Metrics,
		logger:      logger,
		ringTimeout: cfg.RingTimeout,
		now:         time.Now,
		newCallID:   func() string { return "call_" + uuid.NewString() },
	}
}

// Initiate handles an inbound call request. The placeholder appointment
// write is unconditional: it must succeed even when no doctor is reachable,
// because the appointment's existence must not depend on transport
// availability.
func (r *Router) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	ctx, span := routerTracer.Start(ctx, "call.initiate")
	defer span.End()

	if strings.TrimSpace(req.PatientID) == "" {
		r.metrics.ObserveInitiate("validation_error")
		return nil, &ValidationError{Field: "patientId"}
	}
	if strings.TrimSpace(req.DoctorID) == "" {
		r.metrics.ObserveInitiate("validation_error")
		return nil, &ValidationError{Field: "doctorId"}
	}

	patientID, err := appointments.ParseID(req.PatientID)
	if err != nil {
		r.metrics.ObserveInitiate("validation_error")
		return nil, &ValidationError{Field: "patientId"}
	}
	doctorID, err := appointments.ParseID(req.DoctorID)
	if err != nil {
		r.metrics.ObserveInitiate("validation_error")
		return nil, &ValidationError{Field: "doctorId"}
	}

	callID := r.newCallID()
	span.SetAttributes(
		attribute.String("callrelay.call_id", callID),
		attribute.String("callrelay.doctor_id", req.DoctorID),
	)

	now := r.now().UTC()
	r.sessions.Put(Session{
		ID:              callID,
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		PatientName:     req.PatientName,
		DoctorName:      req.DoctorName,
		AppointmentType: req.AppointmentType,
		Symptoms:        req.Symptoms,
		State:           StateInitiated,
		CreatedAt:       now,
	})

	// Placeholder row with today's date/time; reconciliation rewrites
	// it once the transcript yields the agreed slot.
	rec, err := r.store.Insert(ctx, appointments.Record{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Status:    appointments.StatusScheduled,
	})
	if err != nil {
		span.RecordError(err)
		r.metrics.ObserveInitiate("storage_error")
		if _, terr := r.sessions.Transition(callID, StateFailed); terr != nil {
			r.logger.Warn("failed session transition", "call_id", callID, "error", terr)
		}
		return nil, &StorageError{Op: "insert", Err: err}
	}
	r.sessions.SetAppointmentID(callID, rec.ID)

	if r.registry.Count() == 0 {
		r.logger.Warn("no doctors connected, appointment stored but unnotified", "call_id", callID)
		r.metrics.ObserveInitiate("stored_unnotified")
		if _, terr := r.sessions.Transition(callID, StateUnnotified); terr != nil {
			r.logger.Warn("failed session transition", "call_id", callID, "error", terr)
		}
		return &InitiateResult{CallID: callID, NotifiedCount: 0, AppointmentID: rec.ID, Stored: true}, nil
	}

	offer := Offer{
		Type:            "incoming_call",
		CallID:          callID,
		PatientID:       req.PatientID,
		PatientName:     displayName(req.PatientName, req.PatientID),
		DoctorID:        req.DoctorID,
		DoctorName:      req.DoctorName,
		AppointmentType: req.AppointmentType,
		Symptoms:        req.Symptoms,
		AppointmentID:   rec.ID,
		Timestamp:       now.Format(time.RFC3339),
	}

	attempted := r.registry.Count()
	sent := r.registry.BroadcastToAll(offer)
	r.metrics.ObserveOfferDelivery(sent, attempted-sent)

	if sent == 0 {
		// every delivery failed; same degraded terminal as an empty
		// registry, the appointment survives regardless
		r.logger.Warn("call offer reached no endpoints", "call_id", callID, "attempted", attempted)
		r.metrics.ObserveInitiate("stored_unnotified")
		if _, terr := r.sessions.Transition(callID, StateUnnotified); terr != nil {
			r.logger.Warn("failed session transition", "call_id", callID, "error", terr)
		}
		return &InitiateResult{CallID: callID, NotifiedCount: 0, AppointmentID: rec.ID, Stored: true}, nil
	}

	r.metrics.ObserveInitiate("notified")
	if _, terr := r.sessions.Transition(callID, StateRinging); terr != nil {
		r.logger.Warn("failed session transition", "call_id", callID, "error", terr)
	}
	r.scheduleRingTimeout(callID)

	r.logger.Info("call offer broadcast", "call_id", callID, "notified", sent)
	return &InitiateResult{CallID: callID, NotifiedCount: sent, AppointmentID: rec.ID, Stored: true}, nil
}

// Reject records a doctor's decline: the matching record's status flips to
// rejected (date/time untouched) and the workflow engine hears the reason.
// Neither step can fail the request; both degrade to logs.
func (r *Router) Reject(ctx context.Context, req RejectRequest) {
	ctx, span := routerTracer.Start(ctx, "call.reject")
	defer span.End()

	if req.CallID != "" {
		if _, err := r.sessions.Transition(req.CallID, StateRejected); err != nil {
			r.logger.Warn("reject transition skipped", "call_id", req.CallID, "error", err)
		}
	}

	patientID, perr := appointments.ParseID(req.PatientID)
	doctorID, derr := appointments.ParseID(req.DoctorID)
	if perr != nil || derr != nil {
		r.logger.Warn("reject without resolvable identities, skipping status update",
			"call_id", req.CallID, "patient_id", req.PatientID, "doctor_id", req.DoctorID)
	} else if _, err := r.store.UpdateStatus(ctx, patientID, doctorID, appointments.StatusRejected); err != nil {
		span.RecordError(err)
		r.logger.Error("failed to mark appointment rejected", "call_id", req.CallID, "error", err)
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyRejected(ctx, workflow.RejectedOutcome{
			CallID: req.CallID,
			Reason: req.Reason,
		}); err != nil {
			r.logger.Warn("workflow callback unavailable", "call_id", req.CallID, "error", err)
		}
	}
}

// Accept moves a ringing session into the active call. The transcript
// buffer is cleared so the session starts empty.
func (r *Router) Accept(ctx context.Context, callID string) error {
	if _, err := r.sessions.Transition(callID, StateAccepted); err != nil {
		return err
	}
	if err := r.transcripts.Clear(ctx, callID); err != nil {
		r.logger.Warn("failed to clear transcript buffer", "call_id", callID, "error", err)
	}
	_, err := r.sessions.Transition(callID, StateActive)
	return err
}

// End terminates an active call. Reconciliation runs afterwards and never
// blocks termination.
func (r *Router) End(callID string) error {
	_, err := r.sessions.Transition(callID, StateEnded)
	return err
}

// Fail force-terminates a session on transport-level errors.
func (r *Router) Fail(callID string, reason string) {
	if _, err := r.sessions.Transition(callID, StateFailed); err != nil {
		r.logger.Warn("fail transition skipped", "call_id", callID, "error", err)
		return
	}
	r.logger.Error("call session failed", "call_id", callID, "reason", reason)
}

// scheduleRingTimeout times out sessions nobody answers. A zero timeout
// disables the timer (tests drive transitions directly).
func (r *Router) scheduleRingTimeout(callID string) {
	if r.ringTimeout <= 0 {
		return
	}
	time.AfterFunc(r.ringTimeout, func() {
		sess, ok := r.sessions.Get(callID)
		if !ok || sess.State != StateRinging {
			return
		}
		if _, err := r.sessions.Transition(callID, StateTimedOut); err != nil {
			return
		}
		r.logger.Warn("call rang out", "call_id", callID, "timeout", r.ringTimeout.String())
	})
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Patient %s", id)
}
