package call

import (
	"sort"
	"sync"

	"github.com/callthedoctor/call-relay/internal/observability/metrics"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

// Sessions is the concurrency-safe in-memory call session table. Terminal
// sessions stay in the table (destroyed logically, not physically) so late
// signals can be recognized and rejected rather than recreated.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *metrics.CallMetrics
	logger   *logging.Logger
}

// NewSessions creates an empty session table.
func NewSessions(m *metrics.CallMetrics, logger *logging.Logger) *Sessions {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sessions{
		sessions: make(map[string]*Session),
		metrics:  m,
		logger:   logger,
	}
}

// Put stores a new session. An existing session with the same ID is
// replaced; call IDs are unique per call so this only matters in tests.
func (t *Sessions) Put(sess Session) {
	t.mu.Lock()
	copied := sess
	t.sessions[sess.ID] = &copied
	t.mu.Unlock()
}

// Get returns a copy of the session, if known.
func (t *Sessions) Get(callID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[callID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Transition moves a session to a new state. Invalid transitions and
// transitions out of terminal states return an error and leave the session
// untouched.
func (t *Sessions) Transition(callID string, to State) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[callID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	from := sess.State
	if err := canTransition(from, to); err != nil {
		return *sess, err
	}
	sess.State = to
	t.metrics.ObserveTransition(string(from), string(to))
	t.logger.Info("call session transition", "call_id", callID, "from", from, "to", to)
	return *sess, nil
}

// SetAppointmentID records the persisted placeholder reference.
func (t *Sessions) SetAppointmentID(callID string, appointmentID int64) {
	t.mu.Lock()
	if sess, ok := t.sessions[callID]; ok {
		sess.AppointmentID = appointmentID
	}
	t.mu.Unlock()
}

// MarkReconciled latches the reconciliation hand-off. Returns true only on
// the first call for a session, so the transcript is consumed exactly once.
func (t *Sessions) MarkReconciled(callID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[callID]
	if !ok || sess.reconciled {
		return false
	}
	sess.reconciled = true
	return true
}

// List returns copies of all sessions, newest first.
func (t *Sessions) List() []Session {
	t.mu.RLock()
	out := make([]Session, 0, len(t.sessions))
	for _, sess := range t.sessions {
		out = append(out, *sess)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
