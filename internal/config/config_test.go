package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gpt-4o", cfg.ExtractionModel)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 45*time.Second, cfg.RingTimeout)
	assert.Contains(t, cfg.CORSAllowedOrigins, "http://localhost:3000")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKFLOW_CALLBACK_TIMEOUT", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.WorkflowCallbackTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("APPOINTMENT_STORE_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
}
