package appointments

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Appointment statuses. The record store accepts nothing else.
const (
	StatusScheduled = "scheduled"
	StatusRejected  = "rejected"
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	hhmmRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Record is one appointment row as the record store sees it. Date and time
// are stored as strings in the exact formats YYYY-MM-DD and HH:MM:SS.
type Record struct {
	ID        int64  `json:"id,omitempty"`
	PatientID int    `json:"patient_id"`
	DoctorID  int    `json:"doctor_id"`
	Date      string `json:"appointment_date"`
	Time      string `json:"appointment_time"`
	Status    string `json:"status"`
}

// Validate checks the record against the store's column contracts.
func (r Record) Validate() error {
	if r.PatientID == 0 || r.DoctorID == 0 {
		return fmt.Errorf("appointments: both patient_id and doctor_id are required")
	}
	if !dateRe.MatchString(r.Date) {
		return fmt.Errorf("appointments: invalid appointment_date %q, expected YYYY-MM-DD", r.Date)
	}
	if !timeRe.MatchString(r.Time) {
		return fmt.Errorf("appointments: invalid appointment_time %q, expected HH:MM:SS", r.Time)
	}
	if r.Status != StatusScheduled && r.Status != StatusRejected {
		return fmt.Errorf("appointments: invalid status %q", r.Status)
	}
	return nil
}

// Store is the durable appointment record store. Updates always select the
// single most recent row for a (patient, doctor) pair by descending
// (date, time) and touch only the top match; a missing row is reported as
// (nil, nil), not an error.
type Store interface {
	Insert(ctx context.Context, rec Record) (*Record, error)
	UpdateDateTime(ctx context.Context, patientID, doctorID int, date, timeOfDay string) (*Record, error)
	UpdateStatus(ctx context.Context, patientID, doctorID int, status string) (*Record, error)
	Configured() bool
}

// ParseID converts an opaque identity string to the store's integer key.
func ParseID(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("appointments: empty identity")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("appointments: identity %q is not numeric: %w", raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("appointments: identity %q out of range", raw)
	}
	return id, nil
}

// PadTime appends seconds to an HH:MM value. Anything else passes through.
func PadTime(t string) string {
	if hhmmRe.MatchString(t) {
		return t + ":00"
	}
	return t
}
