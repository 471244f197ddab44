package appointments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callthedoctor/call-relay/pkg/logging"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	body   map[string]any
}

func newStoreTestServer(t *testing.T, respond func(r recordedRequest, w http.ResponseWriter)) (*RESTStore, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  map[string]string{},
		}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		requests = append(requests, rec)
		w.Header().Set("Content-Type", "application/json")
		respond(rec, w)
	}))
	t.Cleanup(srv.Close)

	store, err := NewRESTStore(RESTConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Logger:  logging.New("error"),
	})
	require.NoError(t, err)
	return store, &requests
}

func TestRESTInsert(t *testing.T) {
	store, requests := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`[{"id":42,"patient_id":7,"doctor_id":1,"appointment_date":"2025-11-18","appointment_time":"14:30:00","status":"scheduled"}]`))
	})

	rec, err := store.Insert(context.Background(), Record{
		PatientID: 7,
		DoctorID:  1,
		Date:      "2025-11-18",
		Time:      "14:30", // HH:MM gets padded before the write
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(42), rec.ID)

	require.Len(t, *requests, 1)
	sent := (*requests)[0]
	assert.Equal(t, http.MethodPost, sent.method)
	assert.Equal(t, "/rest/v1/appointments", sent.path)
	assert.Equal(t, "14:30:00", sent.body["appointment_time"])
	assert.Equal(t, "scheduled", sent.body["status"])
}

func TestRESTInsertRejectsBadDate(t *testing.T) {
	store, requests := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := store.Insert(context.Background(), Record{
		PatientID: 7, DoctorID: 1, Date: "18/11/2025", Time: "14:30:00",
	})
	require.Error(t, err)
	assert.Empty(t, *requests, "invalid record must not reach the store")
}

func TestRESTInsertSurfacesStoreError(t *testing.T) {
	store, _ := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	})

	_, err := store.Insert(context.Background(), Record{
		PatientID: 7, DoctorID: 1, Date: "2025-11-18", Time: "14:30:00",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestRESTUpdateDateTimeSelectsMostRecentScheduled(t *testing.T) {
	store, requests := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {
		switch r.method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":9,"patient_id":7,"doctor_id":1,"appointment_date":"2025-01-01","appointment_time":"09:00:00","status":"scheduled"}]`))
		case http.MethodPatch:
			_, _ = w.Write([]byte(`[{"id":9,"patient_id":7,"doctor_id":1,"appointment_date":"2025-12-01","appointment_time":"15:00:00","status":"scheduled"}]`))
		}
	})

	rec, err := store.UpdateDateTime(context.Background(), 7, 1, "2025-12-01", "15:00:00")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "2025-12-01", rec.Date)

	require.Len(t, *requests, 2)
	sel := (*requests)[0]
	assert.Equal(t, "eq.7", sel.query["patient_id"])
	assert.Equal(t, "eq.scheduled", sel.query["status"])
	assert.Equal(t, "appointment_date.desc,appointment_time.desc", sel.query["order"])
	assert.Equal(t, "1", sel.query["limit"])

	patch := (*requests)[1]
	assert.Equal(t, "eq.9", patch.query["id"])
	assert.Equal(t, "2025-12-01", patch.body["appointment_date"])
}

func TestRESTUpdateDateTimeNoRowIsNil(t *testing.T) {
	store, _ := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`[]`))
	})

	rec, err := store.UpdateDateTime(context.Background(), 7, 1, "2025-12-01", "15:00:00")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRESTUpdateStatusTouchesOnlyStatus(t *testing.T) {
	store, requests := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {
		switch r.method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":3,"patient_id":7,"doctor_id":1,"appointment_date":"2025-01-01","appointment_time":"09:00:00","status":"scheduled"}]`))
		case http.MethodPatch:
			_, _ = w.Write([]byte(`[{"id":3,"patient_id":7,"doctor_id":1,"appointment_date":"2025-01-01","appointment_time":"09:00:00","status":"rejected"}]`))
		}
	})

	rec, err := store.UpdateStatus(context.Background(), 7, 1, StatusRejected)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusRejected, rec.Status)
	assert.Equal(t, "2025-01-01", rec.Date, "date must be untouched")

	patch := (*requests)[1]
	assert.Equal(t, map[string]any{"status": "rejected"}, patch.body)
	// rejection targets the most recent row regardless of status
	sel := (*requests)[0]
	_, filtered := sel.query["status"]
	assert.False(t, filtered)
}

func TestRESTUpdateStatusRejectsUnknownStatus(t *testing.T) {
	store, _ := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := store.UpdateStatus(context.Background(), 7, 1, "cancelled")
	require.Error(t, err)
}

func TestRESTConfigured(t *testing.T) {
	store, _ := newStoreTestServer(t, func(r recordedRequest, w http.ResponseWriter) {})
	assert.True(t, store.Configured())

	_, err := NewRESTStore(RESTConfig{})
	require.Error(t, err)
}
