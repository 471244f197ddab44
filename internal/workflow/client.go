package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/callthedoctor/call-relay/pkg/logging"
)

// ConfirmedOutcome is posted to the workflow engine when an appointment was
// confirmed on the call.
type ConfirmedOutcome struct {
	Status          string `json:"status"`
	CallID          string `json:"call_id"`
	Patient         string `json:"patient,omitempty"`
	Doctor          string `json:"doctor,omitempty"`
	Date            string `json:"appointment_date,omitempty"`
	Time            string `json:"appointment_time,omitempty"`
	AppointmentType string `json:"appointment_type,omitempty"`
	ChiefComplaint  string `json:"chief_complaint,omitempty"`
	Notes           string `json:"notes,omitempty"`
	FullTranscript  string `json:"full_transcript,omitempty"`
}

// RejectedOutcome is posted when the doctor declined the call.
type RejectedOutcome struct {
	Status string `json:"status"`
	CallID string `json:"call_id"`
	Reason string `json:"reason"`
}

// Notifier reports call outcomes to the external workflow engine.
// All notifications are best-effort: the appointment's source of truth is
// the record store, so callers swallow (and log) delivery failures.
type Notifier interface {
	NotifyConfirmed(ctx context.Context, outcome ConfirmedOutcome) error
	NotifyRejected(ctx context.Context, outcome RejectedOutcome) error
}

// Config controls the callback client.
type Config struct {
	CallbackURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// Client posts outcomes to a single callback URL.
type Client struct {
	callbackURL string
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewClient creates a workflow callback client.
func NewClient(cfg Config) *Client {
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
	return &Client{
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		httpClient:  httpClient,
		logger:      logger,
	}
}

// NotifyConfirmed posts a confirmed-appointment outcome.
func (c *Client) NotifyConfirmed(ctx context.Context, outcome ConfirmedOutcome) error {
	outcome.Status = "success"
	return c.post(ctx, outcome)
}

// NotifyRejected posts a rejected-call outcome.
func (c *Client) NotifyRejected(ctx context.Context, outcome RejectedOutcome) error {
	outcome.Status = "rejected"
	if outcome.Reason == "" {
		outcome.Reason = "Doctor unavailable"
	}
	return c.post(ctx, outcome)
}

func (c *Client) post(ctx context.Context, payload any) error {
	if c.callbackURL == "" {
		return errors.New("workflow: callback URL not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("workflow: marshal outcome: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("workflow: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("workflow: callback unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("workflow: callback returned %d", resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*Client)(nil)
