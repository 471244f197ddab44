package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callthedoctor/call-relay/internal/appointments"
	appconfig "github.com/callthedoctor/call-relay/internal/config"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

func TestBuildStoreSelectsBackend(t *testing.T) {
	logger := logging.Default()

	t.Run("rest store", func(t *testing.T) {
		cfg := &appconfig.Config{StoreBaseURL: "https://example.supabase.co", StoreAPIKey: "key"}
		store := buildStore(cfg, logger, nil)
		require.IsType(t, &appointments.RESTStore{}, store)
		assert.True(t, store.Configured())
	})

	t.Run("null store fallback", func(t *testing.T) {
		store := buildStore(&appconfig.Config{}, logger, nil)
		require.IsType(t, &appointments.NullStore{}, store)
		assert.False(t, store.Configured())
	})
}

func TestBuildTranscriptStore(t *testing.T) {
	logger := logging.Default()
	assert.Nil(t, buildTranscriptStore(&appconfig.Config{}, logger))
	assert.NotNil(t, buildTranscriptStore(&appconfig.Config{RedisAddr: "localhost:6379"}, logger))
}
