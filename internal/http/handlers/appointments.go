package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/callthedoctor/call-relay/internal/appointments"
	"github.com/callthedoctor/call-relay/internal/extraction"
	"github.com/callthedoctor/call-relay/internal/workflow"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

// Extractor produces structured appointment fields from a transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript []extraction.Turn) (*extraction.Result, error)
}

// AppointmentHandler reconciles client-posted transcripts and manual
// confirmations against the record store. Browser clients that hold the
// transcript locally post it here instead of streaming it over WebSocket.
type AppointmentHandler struct {
	extractor Extractor
	store     appointments.Store
	notifier  workflow.Notifier
	logger    *logging.Logger
	now       func() time.Time
}

// NewAppointmentHandler creates an appointment handler.
func NewAppointmentHandler(extractor Extractor, store appointments.Store, notifier workflow.Notifier, logger *logging.Logger) *AppointmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{
		extractor: extractor,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

type extractRequest struct {
	Transcript []extraction.Turn `json:"transcript"`
	CallID     string            `json:"callId"`
	PatientID  string            `json:"patientId"`
	DoctorID   string            `json:"doctorId"`
}

type extractResponse struct {
	extraction.Result
	// Date and Time alias the normalized appointment fields for older
	// clients that read the short names.
	AliasDate      string `json:"date"`
	AliasTime      string `json:"time"`
	CallID         string `json:"callId"`
	FullTranscript string `json:"full_transcript"`
}

// Extract handles POST /api/extract-appointment.
func (h *AppointmentHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Transcript) == 0 {
		writeError(w, http.StatusBadRequest, "No transcript provided")
		return
	}
	if h.extractor == nil {
		writeError(w, http.StatusInternalServerError, "extraction not configured")
		return
	}

	result, err := h.extractor.Extract(r.Context(), req.Transcript)
	if err != nil {
		h.logger.Error("transcript extraction failed", "call_id", req.CallID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to extract appointment details")
		return
	}

	date, dateOK := extraction.NormalizeDate(result.Date, h.now())
	if result.Date != "" && !dateOK {
		h.logger.Warn("unusable extracted date", "call_id", req.CallID, "raw", result.Date)
	}
	time24, timeOK := extraction.NormalizeTime(result.Time)
	if result.Time != "" && !timeOK {
		h.logger.Warn("unusable extracted time", "call_id", req.CallID, "raw", result.Time)
	}
	result.Date = date
	result.Time = time24

	if result.Confirmed && date != "" && time24 != "" {
		h.updateRecord(r.Context(), req, date, time24)
	}

	transcript := extraction.FlattenTranscript(req.Transcript)
	if result.Confirmed && h.notifier != nil {
		if err := h.notifier.NotifyConfirmed(r.Context(), workflow.ConfirmedOutcome{
			CallID:         req.CallID,
			Patient:        result.PatientName,
			Doctor:         result.DoctorName,
			Date:           date,
			Time:           time24,
			ChiefComplaint: result.ChiefComplaint,
			Notes:          result.Notes,
			FullTranscript: transcript,
		}); err != nil {
			h.logger.Warn("workflow callback unavailable", "call_id", req.CallID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": extractResponse{
			Result:         *result,
			AliasDate:      date,
			AliasTime:      time24,
			CallID:         req.CallID,
			FullTranscript: transcript,
		},
	})
}

func (h *AppointmentHandler) updateRecord(ctx context.Context, req extractRequest, date, time24 string) {
	patientID, perr := appointments.ParseID(req.PatientID)
	doctorID, derr := appointments.ParseID(req.DoctorID)
	if perr != nil || derr != nil {
		h.logger.Warn("identities unresolvable, skipping record update", "call_id", req.CallID)
		return
	}
	rec, err := h.store.UpdateDateTime(ctx, patientID, doctorID, date, time24)
	if err != nil {
		h.logger.Error("failed to update appointment record", "call_id", req.CallID, "error", err)
		return
	}
	if rec == nil {
		h.logger.Warn("no scheduled appointment to update", "call_id", req.CallID)
	}
}

type confirmRequest struct {
	CallID          string `json:"callId"`
	PatientName     string `json:"patientName"`
	DoctorName      string `json:"doctorName"`
	PatientID       string `json:"patientId"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	AppointmentType string `json:"appointmentType"`
	Notes           string `json:"notes"`
}

// Confirm handles POST /api/confirm-appointment, the manual confirmation
// path. Storage and callback failures both degrade: a human already agreed
// to the appointment, so the answer is yes regardless.
func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.storeConfirmed(r.Context(), req)

	message := "Appointment confirmed"
	if h.notifier != nil {
		if err := h.notifier.NotifyConfirmed(r.Context(), workflow.ConfirmedOutcome{
			CallID:          req.CallID,
			Patient:         req.PatientName,
			Doctor:          req.DoctorName,
			Date:            req.AppointmentDate,
			Time:            req.AppointmentTime,
			AppointmentType: req.AppointmentType,
			Notes:           req.Notes,
		}); err != nil {
			h.logger.Warn("workflow callback unavailable", "call_id", req.CallID, "error", err)
			message = "Appointment confirmed (callback not available)"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}

func (h *AppointmentHandler) storeConfirmed(ctx context.Context, req confirmRequest) {
	patientID, perr := appointments.ParseID(req.PatientID)
	doctorID, derr := appointments.ParseID(req.DoctorID)
	if perr != nil || derr != nil {
		return
	}
	date, dateOK := extraction.NormalizeDate(req.AppointmentDate, h.now())
	time24, timeOK := extraction.NormalizeTime(req.AppointmentTime)
	if !dateOK || !timeOK {
		h.logger.Warn("manual confirmation without usable slot", "call_id", req.CallID)
		return
	}
	if _, err := h.store.Insert(ctx, appointments.Record{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      time24,
		Status:    appointments.StatusScheduled,
	}); err != nil {
		h.logger.Error("failed to store confirmed appointment", "call_id", req.CallID, "error", err)
	}
}
