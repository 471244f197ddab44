package call

import (
	"fmt"
	"time"
)

// State is one step in a call session's lifecycle.
type State string

const (
	StateInitiated State = "initiated"
	StateRinging   State = "ringing"
	StateAccepted  State = "accepted"
	StateRejected  State = "rejected"
	StateActive    State = "active"
	StateEnded     State = "ended"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
	// StateUnnotified is the degraded terminal state for "stored but
	// unnotified": the placeholder appointment exists but no doctor
	// endpoint was reachable.
	StateUnnotified State = "unnotified"
)

// Terminal reports whether no further transition is valid from s.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateEnded, StateTimedOut, StateFailed, StateUnnotified:
		return true
	}
	return false
}

// validNext lists the forward edges of the lifecycle. Failed is reachable
// from every non-terminal state and handled separately.
var validNext = map[State][]State{
	StateInitiated: {StateRinging, StateUnnotified},
	StateRinging:   {StateAccepted, StateRejected, StateTimedOut},
	StateAccepted:  {StateActive},
	StateActive:    {StateEnded, StateTimedOut},
}

// canTransition validates one edge of the state machine.
func canTransition(from, to State) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, from)
	}
	if to == StateFailed {
		return nil
	}
	for _, next := range validNext[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Session is one call's lifecycle from creation to termination. Sessions
// are owned by the Sessions table; callers receive copies and mutate only
// through the table, so a Session value is safe to hand around.
type Session struct {
	ID              string    `json:"callId"`
	PatientID       string    `json:"patientId"`
	DoctorID        string    `json:"doctorId"`
	PatientName     string    `json:"patientName,omitempty"`
	DoctorName      string    `json:"doctorName,omitempty"`
	AppointmentType string    `json:"appointmentType,omitempty"`
	Symptoms        string    `json:"symptoms,omitempty"`
	State           State     `json:"state"`
	CreatedAt       time.Time `json:"createdAt"`
	// AppointmentID references the persisted placeholder record; zero
	// until the store write succeeds.
	AppointmentID int64 `json:"appointmentId,omitempty"`

	reconciled bool
}
