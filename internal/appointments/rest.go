package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/callthedoctor/call-relay/internal/observability/metrics"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

// RESTConfig controls how the record store client behaves.
type RESTConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.CallMetrics
}

// RESTStore talks to a Supabase-style REST record store. The store is
// treated as opaque: rows in, rows out, filter expressions in the query
// string.
type RESTStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.CallMetrics
}

// NewRESTStore creates a configured client with sane defaults.
func NewRESTStore(cfg RESTConfig) (*RESTStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("appointments: store base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &RESTStore{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Configured reports whether the client can reach a real store.
func (s *RESTStore) Configured() bool {
	return s != nil && s.baseURL != "" && s.apiKey != ""
}

// Insert writes a new appointment row and returns the stored representation.
func (s *RESTStore) Insert(ctx context.Context, rec Record) (*Record, error) {
	rec.Time = PadTime(rec.Time)
	if rec.Status == "" {
		rec.Status = StatusScheduled
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal record: %w", err)
	}

	start := time.Now()
	data, err := s.invoke(ctx, http.MethodPost, "/rest/v1/appointments", nil, body)
	s.metrics.ObserveStoreLatency("insert", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("appointments: store returned no representation")
	}
	s.logger.Info("appointment stored", "appointment_id", rows[0].ID,
		"patient_id", rec.PatientID, "doctor_id", rec.DoctorID)
	return &rows[0], nil
}

// UpdateDateTime rewrites date/time on the most recent scheduled row for the
// (patient, doctor) pair. Returns (nil, nil) when no scheduled row exists.
func (s *RESTStore) UpdateDateTime(ctx context.Context, patientID, doctorID int, date, timeOfDay string) (*Record, error) {
	timeOfDay = PadTime(timeOfDay)
	if !dateRe.MatchString(date) {
		return nil, fmt.Errorf("appointments: invalid appointment_date %q, expected YYYY-MM-DD", date)
	}
	if !timeRe.MatchString(timeOfDay) {
		return nil, fmt.Errorf("appointments: invalid appointment_time %q, expected HH:MM:SS", timeOfDay)
	}

	target, err := s.mostRecent(ctx, patientID, doctorID, StatusScheduled)
	if err != nil {
		return nil, err
	}
	if target == nil {
		s.logger.Warn("no scheduled appointment to update",
			"patient_id", patientID, "doctor_id", doctorID)
		return nil, nil
	}

	return s.patch(ctx, target.ID, map[string]string{
		"appointment_date": date,
		"appointment_time": timeOfDay,
	}, "update_datetime")
}

// UpdateStatus sets the status of the most recent row (any status) for the
// (patient, doctor) pair. Date and time fields are untouched.
func (s *RESTStore) UpdateStatus(ctx context.Context, patientID, doctorID int, status string) (*Record, error) {
	if status != StatusScheduled && status != StatusRejected {
		return nil, fmt.Errorf("appointments: invalid status %q", status)
	}

	target, err := s.mostRecent(ctx, patientID, doctorID, "")
	if err != nil {
		return nil, err
	}
	if target == nil {
		s.logger.Warn("no appointment to update",
			"patient_id", patientID, "doctor_id", doctorID)
		return nil, nil
	}

	return s.patch(ctx, target.ID, map[string]string{"status": status}, "update_status")
}

// mostRecent selects the top row by descending (date, time). An empty
// status matches any status.
func (s *RESTStore) mostRecent(ctx context.Context, patientID, doctorID int, status string) (*Record, error) {
	q := url.Values{}
	q.Set("patient_id", fmt.Sprintf("eq.%d", patientID))
	q.Set("doctor_id", fmt.Sprintf("eq.%d", doctorID))
	if status != "" {
		q.Set("status", "eq."+status)
	}
	q.Set("order", "appointment_date.desc,appointment_time.desc")
	q.Set("limit", "1")

	start := time.Now()
	data, err := s.invoke(ctx, http.MethodGet, "/rest/v1/appointments", q, nil)
	s.metrics.ObserveStoreLatency("select", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *RESTStore) patch(ctx context.Context, id int64, fields map[string]string, op string) (*Record, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal patch: %w", err)
	}
	q := url.Values{}
	q.Set("id", fmt.Sprintf("eq.%d", id))

	start := time.Now()
	data, err := s.invoke(ctx, http.MethodPatch, "/rest/v1/appointments", q, body)
	s.metrics.ObserveStoreLatency(op, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	s.logger.Info("appointment updated", "appointment_id", id, "operation", op)
	return &rows[0], nil
}

func (s *RESTStore) invoke(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	fullURL := s.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("appointments: build request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("appointments: http error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("appointments: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("appointments: store returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

func decodeRows(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var rows []Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("appointments: decode response: %w", err)
	}
	return rows, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Store = (*RESTStore)(nil)
