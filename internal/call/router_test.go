package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callthedoctor/call-relay/internal/appointments"
	"github.com/callthedoctor/call-relay/internal/registry"
	"github.com/callthedoctor/call-relay/internal/workflow"
)

type fakeStore struct {
	mu         sync.Mutex
	insertErr  error
	inserted   []appointments.Record
	statusRecs []string
	statusErr  error
	nextID     int64
}

func (s *fakeStore) Insert(_ context.Context, rec appointments.Record) (*appointments.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.nextID++
	rec.ID = s.nextID
	s.inserted = append(s.inserted, rec)
	return &rec, nil
}

func (s *fakeStore) UpdateDateTime(context.Context, int, int, string, string) (*appointments.Record, error) {
	return nil, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, _, _ int, status string) (*appointments.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	s.statusRecs = append(s.statusRecs, status)
	return &appointments.Record{ID: 1, Status: status}, nil
}

func (s *fakeStore) Configured() bool { return true }

type fakeChannel struct {
	mu       sync.Mutex
	received []any
	fail     bool
}

func (c *fakeChannel) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.received = append(c.received, v)
	return nil
}

func (c *fakeChannel) offers(t *testing.T) []Offer {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Offer, 0, len(c.received))
	for _, v := range c.received {
		offer, ok := v.(Offer)
		require.True(t, ok)
		out = append(out, offer)
	}
	return out
}

type fakeNotifier struct {
	mu        sync.Mutex
	rejected  []workflow.RejectedOutcome
	confirmed []workflow.ConfirmedOutcome
	err       error
}

func (n *fakeNotifier) NotifyConfirmed(_ context.Context, o workflow.ConfirmedOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, o)
	return n.err
}

func (n *fakeNotifier) NotifyRejected(_ context.Context, o workflow.RejectedOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, o)
	return n.err
}

func newTestRouter(t *testing.T, store *fakeStore, reg registry.Registry, notifier workflow.Notifier) (*Router, *Sessions) {
	t.Helper()
	sessions := NewSessions(nil, nil)
	r := NewRouter(RouterConfig{
		Registry: reg,
		Store:    store,
		Sessions: sessions,
		Notifier: notifier,
	})
	r.now = func() time.Time {
		return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	}
	r.newCallID = func() string { return "call_test" }
	return r, sessions
}

func TestInitiateBroadcastsOfferAndRings(t *testing.T) {
	store := &fakeStore{}
	reg := registry.NewMemoryRegistry(nil)
	ch := &fakeChannel{}
	reg.Register("7", ch)

	r, sessions := newTestRouter(t, store, reg, nil)
	res, err := r.Initiate(context.Background(), InitiateRequest{
		DoctorID:  "7",
		PatientID: "42",
		Symptoms:  "fever",
	})
	require.NoError(t, err)
	assert.Equal(t, "call_test", res.CallID)
	assert.Equal(t, 1, res.NotifiedCount)
	assert.True(t, res.Stored)
	assert.Equal(t, int64(1), res.AppointmentID)

	require.Len(t, store.inserted, 1)
	rec := store.inserted[0]
	assert.Equal(t, 42, rec.PatientID)
	assert.Equal(t, 7, rec.DoctorID)
	assert.Equal(t, "2025-06-15", rec.Date)
	assert.Equal(t, "10:30:00", rec.Time)
	assert.Equal(t, appointments.StatusScheduled, rec.Status)

	offers := ch.offers(t)
	require.Len(t, offers, 1)
	assert.Equal(t, "incoming_call", offers[0].Type)
	assert.Equal(t, "call_test", offers[0].CallID)
	assert.Equal(t, "Patient 42", offers[0].PatientName)
	assert.Equal(t, "fever", offers[0].Symptoms)
	assert.Equal(t, int64(1), offers[0].AppointmentID)

	sess, ok := sessions.Get("call_test")
	require.True(t, ok)
	assert.Equal(t, StateRinging, sess.State)
	assert.Equal(t, int64(1), sess.AppointmentID)
}

func TestInitiateValidation(t *testing.T) {
	store := &fakeStore{}
	r, _ := newTestRouter(t, store, registry.NewMemoryRegistry(nil), nil)

	cases := []InitiateRequest{
		{DoctorID: "7"},
		{PatientID: "42"},
		{DoctorID: "abc", PatientID: "42"},
		{DoctorID: "7", PatientID: "  "},
	}
	for _, req := range cases {
		_, err := r.Initiate(context.Background(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "%+v", req)
	}
	// no side effects before validation passes
	assert.Empty(t, store.inserted)
}

func TestInitiateStoresBeforeNotifying(t *testing.T) {
	// empty registry: the row still lands and the caller gets a partial
	// success instead of an error
	store := &fakeStore{}
	r, sessions := newTestRouter(t, store, registry.NewMemoryRegistry(nil), nil)

	res, err := r.Initiate(context.Background(), InitiateRequest{DoctorID: "7", PatientID: "42"})
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.Zero(t, res.NotifiedCount)
	require.Len(t, store.inserted, 1)

	sess, _ := sessions.Get("call_test")
	assert.Equal(t, StateUnnotified, sess.State)
	assert.True(t, sess.State.Terminal())
}

func TestInitiateStorageFailureIsFatal(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("boom")}
	reg := registry.NewMemoryRegistry(nil)
	ch := &fakeChannel{}
	reg.Register("7", ch)

	r, sessions := newTestRouter(t, store, reg, nil)
	_, err := r.Initiate(context.Background(), InitiateRequest{DoctorID: "7", PatientID: "42"})

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insert", serr.Op)
	// nobody hears about a call whose row never landed
	assert.Empty(t, ch.offers(t))

	sess, _ := sessions.Get("call_test")
	assert.Equal(t, StateFailed, sess.State)
}

func TestInitiateAllSendsFailedIsPartialSuccess(t *testing.T) {
	store := &fakeStore{}
	reg := registry.NewMemoryRegistry(nil)
	reg.Register("7", &fakeChannel{fail: true})

	r, sessions := newTestRouter(t, store, reg, nil)
	res, err := r.Initiate(context.Background(), InitiateRequest{DoctorID: "7", PatientID: "42"})
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.Zero(t, res.NotifiedCount)

	sess, _ := sessions.Get("call_test")
	assert.Equal(t, StateUnnotified, sess.State)
}

func TestRejectUpdatesStatusAndNotifies(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	r, sessions := newTestRouter(t, store, registry.NewMemoryRegistry(nil), notifier)

	sessions.Put(Session{ID: "call_test", State: StateRinging})
	r.Reject(context.Background(), RejectRequest{
		CallID:    "call_test",
		PatientID: "42",
		DoctorID:  "7",
		Reason:    "in surgery",
	})

	assert.Equal(t, []string{appointments.StatusRejected}, store.statusRecs)
	require.Len(t, notifier.rejected, 1)
	assert.Equal(t, "in surgery", notifier.rejected[0].Reason)

	sess, _ := sessions.Get("call_test")
	assert.Equal(t, StateRejected, sess.State)
}

func TestRejectSwallowsDownstreamFailures(t *testing.T) {
	store := &fakeStore{statusErr: errors.New("store down")}
	notifier := &fakeNotifier{err: errors.New("engine down")}
	r, _ := newTestRouter(t, store, registry.NewMemoryRegistry(nil), notifier)

	// unknown session, failing store, failing notifier: none of it panics
	// or surfaces to the caller
	r.Reject(context.Background(), RejectRequest{CallID: "ghost", PatientID: "42", DoctorID: "7"})
	assert.Len(t, notifier.rejected, 1)
}

func TestRejectUnresolvableIdentitiesSkipsStore(t *testing.T) {
	store := &fakeStore{}
	r, _ := newTestRouter(t, store, registry.NewMemoryRegistry(nil), &fakeNotifier{})

	r.Reject(context.Background(), RejectRequest{CallID: "call_x", PatientID: "bob", DoctorID: "7"})
	assert.Empty(t, store.statusRecs)
}

func TestAcceptAndEndLifecycle(t *testing.T) {
	store := &fakeStore{}
	r, sessions := newTestRouter(t, store, registry.NewMemoryRegistry(nil), nil)
	sessions.Put(Session{ID: "call_test", State: StateRinging})

	require.NoError(t, r.Accept(context.Background(), "call_test"))
	sess, _ := sessions.Get("call_test")
	assert.Equal(t, StateActive, sess.State)

	require.NoError(t, r.End("call_test"))
	sess, _ = sessions.Get("call_test")
	assert.Equal(t, StateEnded, sess.State)

	// late duplicate is rejected, not re-applied
	assert.ErrorIs(t, r.End("call_test"), ErrTerminalState)
}

func TestAcceptRequiresRinging(t *testing.T) {
	r, sessions := newTestRouter(t, &fakeStore{}, registry.NewMemoryRegistry(nil), nil)
	sessions.Put(Session{ID: "call_test", State: StateInitiated})
	assert.ErrorIs(t, r.Accept(context.Background(), "call_test"), ErrInvalidTransition)
}

func TestRingTimeout(t *testing.T) {
	store := &fakeStore{}
	reg := registry.NewMemoryRegistry(nil)
	reg.Register("7", &fakeChannel{})

	r, sessions := newTestRouter(t, store, reg, nil)
	r.ringTimeout = 10 * time.Millisecond

	_, err := r.Initiate(context.Background(), InitiateRequest{DoctorID: "7", PatientID: "42"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sess, _ := sessions.Get("call_test")
		return sess.State == StateTimedOut
	}, time.Second, 5*time.Millisecond)
}

func TestRingTimeoutDoesNotFireAfterAccept(t *testing.T) {
	store := &fakeStore{}
	reg := registry.NewMemoryRegistry(nil)
	reg.Register("7", &fakeChannel{})

	r, sessions := newTestRouter(t, store, reg, nil)
	r.ringTimeout = 20 * time.Millisecond

	_, err := r.Initiate(context.Background(), InitiateRequest{DoctorID: "7", PatientID: "42"})
	require.NoError(t, err)
	require.NoError(t, r.Accept(context.Background(), "call_test"))

	time.Sleep(40 * time.Millisecond)
	sess, _ := sessions.Get("call_test")
	assert.Equal(t, StateActive, sess.State)
}
