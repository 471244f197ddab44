package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callthedoctor/call-relay/internal/appointments"
	"github.com/callthedoctor/call-relay/internal/call"
	"github.com/callthedoctor/call-relay/internal/http/handlers"
	"github.com/callthedoctor/call-relay/internal/registry"
)

type memStore struct{}

func (memStore) Insert(_ context.Context, rec appointments.Record) (*appointments.Record, error) {
	rec.ID = 1
	return &rec, nil
}

func (memStore) UpdateDateTime(context.Context, int, int, string, string) (*appointments.Record, error) {
	return nil, nil
}

func (memStore) UpdateStatus(context.Context, int, int, string) (*appointments.Record, error) {
	return nil, nil
}

func (memStore) Configured() bool { return true }

func newTestHandler(t *testing.T, adminSecret string) http.Handler {
	t.Helper()
	reg := registry.NewMemoryRegistry(nil)
	sessions := call.NewSessions(nil, nil)
	callRouter := call.NewRouter(call.RouterConfig{
		Registry: reg,
		Store:    memStore{},
		Sessions: sessions,
	})
	return New(&Config{
		Calls:           handlers.NewCallHandler(callRouter, nil),
		Appointments:    handlers.NewAppointmentHandler(nil, memStore{}, nil, nil),
		Token:           handlers.NewTokenHandler(nil, nil),
		Health:          handlers.NewHealthHandler(reg, nil, memStore{}),
		AdminSessions:   handlers.NewAdminSessionsHandler(sessions),
		AdminAuthSecret: adminSecret,
	})
}

func TestHealthRoute(t *testing.T) {
	h := newTestHandler(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestInitiateCallRoute(t *testing.T) {
	h := newTestHandler(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/initiate-call",
		strings.NewReader(`{"doctorId":"7","patientId":"42"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestTokenRouteUnconfigured(t *testing.T) {
	h := newTestHandler(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/get-ephemeral-token",
		strings.NewReader(`{"patientName":"Ahmed"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminSessionsRequiresJWT(t *testing.T) {
	const secret = "router-test-secret"
	h := newTestHandler(t, secret)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
