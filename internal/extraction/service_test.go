package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callthedoctor/call-relay/pkg/logging"
)

type fakeChatClient struct {
	lastReq openai.ChatCompletionRequest
	content string
	err     error
}

func (c *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.lastReq = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.content}},
		},
	}, nil
}

func sampleTranscript() []Turn {
	return []Turn{
		{Speaker: "assistant", Text: "kya ye clinic hai?"},
		{Speaker: "doctor", Text: "jee haan, 6 bajay ajaen"},
	}
}

func TestExtract(t *testing.T) {
	client := &fakeChatClient{content: `{
		"appointment_confirmed": true,
		"appointment_date": "2025-12-01",
		"appointment_time": "18:00:00",
		"doctor_name": "Dr. Akbar Niazi",
		"patient_name": "Hamza Amin",
		"chief_complaint": "Cough and fever",
		"notes": null
	}`}
	svc := NewService(client, "gpt-4o", logging.New("error"))
	svc.now = func() time.Time { return time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC) }

	result, err := svc.Extract(context.Background(), sampleTranscript())
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
	assert.Equal(t, "2025-12-01", result.Date)
	assert.Equal(t, "18:00:00", result.Time)
	assert.Equal(t, "Hamza Amin", result.PatientName)
	assert.Empty(t, result.Notes, "null fields decode to empty")

	// JSON mode with a deterministic temperature
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, client.lastReq.ResponseFormat.Type)
	assert.Zero(t, client.lastReq.Temperature)

	prompt := client.lastReq.Messages[1].Content
	assert.Contains(t, prompt, "doctor: jee haan, 6 bajay ajaen")
	assert.Contains(t, prompt, "2025-11-20") // today
	assert.Contains(t, prompt, "2025-11-21") // tomorrow
}

func TestExtractToleratesNullFields(t *testing.T) {
	client := &fakeChatClient{content: `{"appointment_confirmed": false, "appointment_date": null, "appointment_time": null}`}
	svc := NewService(client, "", logging.New("error"))

	result, err := svc.Extract(context.Background(), sampleTranscript())
	require.NoError(t, err)
	assert.False(t, result.Confirmed)
	assert.Empty(t, result.Date)
	assert.Empty(t, result.Time)
}

func TestExtractEmptyTranscript(t *testing.T) {
	svc := NewService(&fakeChatClient{}, "", logging.New("error"))
	_, err := svc.Extract(context.Background(), nil)
	require.Error(t, err)
}

func TestExtractUpstreamError(t *testing.T) {
	client := &fakeChatClient{err: errors.New("rate limited")}
	svc := NewService(client, "", logging.New("error"))

	_, err := svc.Extract(context.Background(), sampleTranscript())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion")
}

func TestExtractMalformedModelOutput(t *testing.T) {
	client := &fakeChatClient{content: "not json"}
	svc := NewService(client, "", logging.New("error"))

	_, err := svc.Extract(context.Background(), sampleTranscript())
	require.Error(t, err)
}

func TestFlattenTranscript(t *testing.T) {
	got := FlattenTranscript(sampleTranscript())
	assert.Equal(t, "assistant: kya ye clinic hai?\ndoctor: jee haan, 6 bajay ajaen", got)
}
