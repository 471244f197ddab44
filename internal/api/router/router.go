package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/callthedoctor/call-relay/internal/http/handlers"
	httpmiddleware "github.com/callthedoctor/call-relay/internal/http/middleware"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Calls              *handlers.CallHandler
	Appointments       *handlers.AppointmentHandler
	Token              *handlers.TokenHandler
	Health             *handlers.HealthHandler
	AdminSessions      *handlers.AdminSessionsHandler
	DoctorWS           http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AdminAuthSecret    string

	// InitiateRate limits call initiation per caller IP; zero disables
	// the limiter.
	InitiateRate  float64
	InitiateBurst int
}

// New creates the relay's chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", cfg.Health.Check)

	if cfg.DoctorWS != nil {
		r.Handle("/ws", cfg.DoctorWS)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.InitiateRate > 0 {
			limited := api.With(httpmiddleware.RateLimit(cfg.InitiateRate, cfg.InitiateBurst))
			limited.Post("/initiate-call", cfg.Calls.Initiate)
		} else {
			api.Post("/initiate-call", cfg.Calls.Initiate)
		}
		api.Post("/reject-call", cfg.Calls.Reject)
		api.Post("/extract-appointment", cfg.Appointments.Extract)
		api.Post("/confirm-appointment", cfg.Appointments.Confirm)
		api.Post("/get-ephemeral-token", cfg.Token.Mint)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Get("/admin/sessions", cfg.AdminSessions.List)
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
