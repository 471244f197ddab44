package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/callthedoctor/call-relay/pkg/logging"
)

// Turn is one transcript utterance as reported by the audio bridge.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Result is the structured output of a transcript extraction. Every field
// except Confirmed may be empty; callers must tolerate that.
type Result struct {
	Confirmed      bool   `json:"appointment_confirmed"`
	Date           string `json:"appointment_date,omitempty"`
	Time           string `json:"appointment_time,omitempty"`
	DoctorName     string `json:"doctor_name,omitempty"`
	PatientName    string `json:"patient_name,omitempty"`
	ChiefComplaint string `json:"chief_complaint,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service turns free-text call transcripts into structured appointment
// fields using an OpenAI chat model in JSON mode.
type Service struct {
	client chatClient
	model  string
	logger *logging.Logger
	now    func() time.Time
}

// NewService returns an OpenAI-backed extraction service.
func NewService(client chatClient, model string, logger *logging.Logger) *Service {
	if client == nil {
		panic("extraction: chat client cannot be nil")
	}
	if model == "" {
		model = "gpt-4o"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{client: client, model: model, logger: logger, now: time.Now}
}

// NewOpenAIClient builds the default chat client for the given key.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Extract runs the transcript through the extraction model. The raw model
// output is returned as-is; date/time normalization is the caller's step.
func (s *Service) Extract(ctx context.Context, transcript []Turn) (*Result, error) {
	if len(transcript) == 0 {
		return nil, errors.New("extraction: empty transcript")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a precise data extraction assistant. Return only valid JSON, no markdown, no explanations.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: s.buildPrompt(transcript),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("extraction: model returned no choices")
	}

	var result Result
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("extraction: decode model output: %w", err)
	}

	s.logger.Info("transcript extracted",
		"confirmed", result.Confirmed,
		"has_date", result.Date != "",
		"has_time", result.Time != "",
	)
	return &result, nil
}

// FlattenTranscript renders turns as "speaker: text" lines.
func FlattenTranscript(transcript []Turn) string {
	lines := make([]string, 0, len(transcript))
	for _, turn := range transcript {
		lines = append(lines, turn.Speaker+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}

func (s *Service) buildPrompt(transcript []Turn) string {
	now := s.now().UTC()
	currentDate := now.Format("2006-01-02")
	tomorrowDate := now.AddDate(0, 0, 1).Format("2006-01-02")
	currentYear := now.Year()

	return fmt.Sprintf(`Extract appointment details from this conversation between an AI assistant (calling on behalf of a patient) and a doctor's clinic.

Conversation:
%s

Return ONLY a valid JSON object with these exact fields:
{
  "appointment_confirmed": boolean (true only if the appointment was explicitly confirmed in the conversation),
  "appointment_date": "YYYY-MM-DD" or null if no date mentioned,
  "appointment_time": "HH:MM:SS" in 24-hour time or null if no time mentioned,
  "doctor_name": string or null,
  "patient_name": string or null,
  "chief_complaint": string (reason for the appointment) or null,
  "notes": string or null
}

Rules:
1. Return ONLY valid JSON, no markdown, no code blocks.
2. If the conversation says "today", use "%s"; if "tomorrow", use "%s"; if a date lacks a year, use %d.
3. Convert 12-hour times to 24-hour with seconds ("2:30 PM" becomes "14:30:00").
4. Parse Urdu time expressions: "3 bajay" in an afternoon/evening context means "15:00:00"; "subah ke 10 bajay" means "10:00:00"; "shaam ke 6 bajay" means "18:00:00".
5. Use null for any field the conversation does not establish.
6. Extract chief_complaint from the symptoms or problem the patient described.`,
		FlattenTranscript(transcript), currentDate, tomorrowDate, currentYear)
}
