// Package reconcile turns an ended call's transcript into appointment
// record updates and a workflow-engine callback. Reconciliation is strictly
// best effort: a call that already ended cannot be failed retroactively, so
// every downstream error here degrades to a log line.
package reconcile

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/callthedoctor/call-relay/internal/appointments"
	"github.com/callthedoctor/call-relay/internal/call"
	"github.com/callthedoctor/call-relay/internal/extraction"
	"github.com/callthedoctor/call-relay/internal/observability/metrics"
	"github.com/callthedoctor/call-relay/internal/transcripts"
	"github.com/callthedoctor/call-relay/internal/workflow"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

var tracer = otel.Tracer("callrelay.internal.reconcile")

// Extractor produces structured appointment fields from a transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript []extraction.Turn) (*extraction.Result, error)
}

// Service reconciles ended calls against the appointment record store.
type Service struct {
	sessions    *call.Sessions
	transcripts *transcripts.Store
	extractor   Extractor
	store       appointments.Store
	notifier    workflow.Notifier
	metrics     *metrics.CallMetrics
	logger      *logging.Logger

	now func() time.Time
}

// Config wires the reconciliation service's collaborators. Extractor and
// Notifier may be nil when the corresponding upstream is not configured;
// reconciliation then degrades to transcript cleanup.
type Config struct {
	Sessions    *call.Sessions
	Transcripts *transcripts.Store
	Extractor   Extractor
	Store       appointments.Store
	Notifier    workflow.Notifier
	Metrics     *metrics.CallMetrics
	Logger      *logging.Logger
}

// New creates a reconciliation service.
func New(cfg Config) *Service {
	if cfg.Sessions == nil {
		panic("reconcile: session table is required")
	}
	if cfg.Store == nil {
		panic("reconcile: appointment store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sessions:    cfg.Sessions,
		transcripts: cfg.Transcripts,
		extractor:   cfg.Extractor,
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		metrics:     cfg.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Run reconciles one ended call. The idempotence latch on the session
// guarantees a transcript is consumed at most once even when the call-ended
// signal arrives on several paths.
func (s *Service) Run(ctx context.Context, callID string) {
	ctx, span := tracer.Start(ctx, "reconcile.run")
	defer span.End()
	span.SetAttributes(attribute.String("callrelay.call_id", callID))

	sess, ok := s.sessions.Get(callID)
	if !ok {
		s.logger.Warn("reconciliation for unknown session", "call_id", callID)
		s.metrics.ObserveReconcile("unknown_session")
		return
	}

	if !s.sessions.MarkReconciled(callID) {
		s.logger.Debug("reconciliation already ran", "call_id", callID)
		return
	}

	turns, err := s.transcripts.List(ctx, callID)
	if err != nil {
		s.logger.Error("failed to load transcript", "call_id", callID, "error", err)
		s.metrics.ObserveReconcile("transcript_error")
		return
	}
	defer func() {
		if err := s.transcripts.Clear(ctx, callID); err != nil {
			s.logger.Warn("failed to drop consumed transcript", "call_id", callID, "error", err)
		}
	}()

	if len(turns) == 0 || s.extractor == nil {
		s.logger.Info("nothing to reconcile", "call_id", callID, "turns", len(turns))
		s.metrics.ObserveReconcile("empty")
		return
	}

	result, err := s.extractor.Extract(ctx, toTurns(turns))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("transcript extraction failed", "call_id", callID, "error", err)
		s.metrics.ObserveReconcile("extraction_error")
		return
	}

	if !result.Confirmed {
		s.logger.Info("no confirmed appointment in transcript", "call_id", callID)
		s.metrics.ObserveReconcile("not_confirmed")
		return
	}

	date, time24 := s.normalize(callID, result)
	s.updateRecord(ctx, sess, date, time24)
	s.notify(ctx, sess, result, date, time24, turns)
	s.metrics.ObserveReconcile("confirmed")
}

// normalize cleans the extracted date and time. A value that cannot be
// normalized becomes empty rather than an error: a wrong placeholder slot
// is preferable to losing the confirmation.
func (s *Service) normalize(callID string, result *extraction.Result) (string, string) {
	date, dateOK := extraction.NormalizeDate(result.Date, s.now())
	if result.Date != "" && !dateOK {
		s.logger.Warn("unusable extracted date", "call_id", callID, "raw", result.Date)
	}
	time24, timeOK := extraction.NormalizeTime(result.Time)
	if result.Time != "" && !timeOK {
		s.logger.Warn("unusable extracted time", "call_id", callID, "raw", result.Time)
	}
	return date, time24
}

// updateRecord rewrites the placeholder slot. It needs a complete slot:
// a date without a time (or the reverse) means extraction only half
// succeeded, and the record keeps its placeholder.
func (s *Service) updateRecord(ctx context.Context, sess call.Session, date, time24 string) {
	if date == "" || time24 == "" {
		s.logger.Warn("incomplete extracted slot, keeping placeholder",
			"call_id", sess.ID, "date", date, "time", time24)
		return
	}
	patientID, perr := appointments.ParseID(sess.PatientID)
	doctorID, derr := appointments.ParseID(sess.DoctorID)
	if perr != nil || derr != nil {
		s.logger.Warn("session identities unresolvable, skipping record update", "call_id", sess.ID)
		return
	}
	rec, err := s.store.UpdateDateTime(ctx, patientID, doctorID, date, time24)
	if err != nil {
		s.logger.Error("failed to update appointment record", "call_id", sess.ID, "error", err)
		return
	}
	if rec == nil {
		s.logger.Warn("no scheduled appointment to update", "call_id", sess.ID,
			"patient_id", sess.PatientID, "doctor_id", sess.DoctorID)
		return
	}
	s.logger.Info("appointment record updated", "call_id", sess.ID,
		"appointment_id", rec.ID, "date", rec.Date, "time", rec.Time)
}

func (s *Service) notify(ctx context.Context, sess call.Session, result *extraction.Result, date, time24 string, turns []transcripts.Entry) {
	if s.notifier == nil {
		return
	}
	outcome := workflow.ConfirmedOutcome{
		CallID:         sess.ID,
		Patient:        firstNonEmpty(result.PatientName, sess.PatientName),
		Doctor:         firstNonEmpty(result.DoctorName, sess.DoctorName),
		Date:           date,
		Time:           time24,
		ChiefComplaint: result.ChiefComplaint,
		Notes:          result.Notes,
		FullTranscript: extraction.FlattenTranscript(toTurns(turns)),
	}
	if err := s.notifier.NotifyConfirmed(ctx, outcome); err != nil {
		s.logger.Warn("workflow callback unavailable", "call_id", sess.ID, "error", err)
	}
}

func toTurns(entries []transcripts.Entry) []extraction.Turn {
	turns := make([]extraction.Turn, 0, len(entries))
	for _, e := range entries {
		turns = append(turns, extraction.Turn{Speaker: e.Speaker, Text: e.Text})
	}
	return turns
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
