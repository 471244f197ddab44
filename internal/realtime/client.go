package realtime

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

const defaultBaseURL = "https://api.openai.com"

// Config controls the realtime session client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Voice      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client mints short-lived credentials for the browser audio bridge. The
// credential expires server-side after a window the speech service defines;
// we never persist it and never log it at full length.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a configured client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("realtime: API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-realtime-preview-2024-12-17"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "ash"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		voice:      voice,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Configured reports whether credential issuance can work.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type sessionRequest struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
}

type sessionResponse struct {
	ClientSecret json.RawMessage `json:"client_secret"`
}

// MintToken creates an ephemeral credential scoped to one call, with
// instructions personalized for the given patient and doctor.
func (c *Client) MintToken(ctx context.Context, patientName, doctorName string) (string, error) {
	body, err := json.Marshal(sessionRequest{
		Model:        c.model,
		Voice:        c.voice,
		Instructions: BuildInstructions(patientName, doctorName),
	})
	if err != nil {
		return "", fmt.Errorf("realtime: marshal session config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/realtime/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("realtime: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("realtime: session request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("realtime: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("realtime: speech service returned %d", resp.StatusCode)
	}

	var session sessionResponse
	if err := json.Unmarshal(data, &session); err != nil {
		return "", fmt.Errorf("realtime: decode response: %w", err)
	}
	secret, err := decodeClientSecret(session.ClientSecret)
	if err != nil {
		return "", err
	}

	c.logger.Info("ephemeral token generated", "secret_length", len(secret))
	return secret, nil
}

// decodeClientSecret handles both shapes the speech service has used:
// a bare string and an object with a "value" property.
func decodeClientSecret(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("realtime: no client_secret in response")
	}
	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil && direct != "" {
		return direct, nil
	}
	var nested struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Value != "" {
		return nested.Value, nil
	}
	return "", errors.New("realtime: no client_secret in response")
}
