package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/callthedoctor/call-relay/internal/api/router"
	"github.com/callthedoctor/call-relay/internal/appointments"
	"github.com/callthedoctor/call-relay/internal/call"
	appconfig "github.com/callthedoctor/call-relay/internal/config"
	"github.com/callthedoctor/call-relay/internal/doctorws"
	"github.com/callthedoctor/call-relay/internal/extraction"
	"github.com/callthedoctor/call-relay/internal/http/handlers"
	"github.com/callthedoctor/call-relay/internal/observability/metrics"
	"github.com/callthedoctor/call-relay/internal/realtime"
	"github.com/callthedoctor/call-relay/internal/reconcile"
	"github.com/callthedoctor/call-relay/internal/registry"
	"github.com/callthedoctor/call-relay/internal/transcripts"
	"github.com/callthedoctor/call-relay/internal/workflow"
	"github.com/callthedoctor/call-relay/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting call-relay API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	promRegistry := prometheus.NewRegistry()
	callMetrics := metrics.NewCallMetrics(promRegistry)

	store := buildStore(cfg, logger, callMetrics)
	transcriptStore := buildTranscriptStore(cfg, logger)

	notifier := workflow.NewClient(workflow.Config{
		CallbackURL: cfg.WorkflowCallbackURL,
		Timeout:     cfg.WorkflowCallbackTimeout,
		Logger:      logger,
	})

	var realtimeClient *realtime.Client
	var extractor reconcile.Extractor
	if cfg.OpenAIAPIKey != "" {
		var err error
		realtimeClient, err = realtime.NewClient(realtime.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.RealtimeModel,
			Voice:   cfg.RealtimeVoice,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to build speech client", "error", err)
			os.Exit(1)
		}
		extractor = extraction.NewService(
			extraction.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
			cfg.ExtractionModel,
			logger,
		)
	} else {
		logger.Warn("OPENAI_API_KEY not set, speech tokens and extraction disabled")
	}

	reg := registry.NewMemoryRegistry(logger)
	sessions := call.NewSessions(callMetrics, logger)
	callRouter := call.NewRouter(call.RouterConfig{
		Registry:    reg,
		Store:       store,
		Sessions:    sessions,
		Notifier:    notifier,
		Transcripts: transcriptStore,
		Metrics:     callMetrics,
		Logger:      logger,
		RingTimeout: cfg.RingTimeout,
	})
	reconciler := reconcile.New(reconcile.Config{
		Sessions:    sessions,
		Transcripts: transcriptStore,
		Extractor:   extractor,
		Store:       store,
		Notifier:    notifier,
		Metrics:     callMetrics,
		Logger:      logger,
	})
	wsHandler := doctorws.NewHandler(doctorws.HandlerConfig{
		Registry:    reg,
		Router:      callRouter,
		Reconciler:  reconciler,
		Transcripts: transcriptStore,
		Metrics:     callMetrics,
		Logger:      logger,
	})

	var appointmentExtractor handlers.Extractor = extractor
	r := router.New(&router.Config{
		Logger:             logger,
		Calls:              handlers.NewCallHandler(callRouter, logger),
		Appointments:       handlers.NewAppointmentHandler(appointmentExtractor, store, notifier, logger),
		Token:              handlers.NewTokenHandler(realtimeClient, logger),
		Health:             handlers.NewHealthHandler(reg, realtimeClient, store),
		AdminSessions:      handlers.NewAdminSessionsHandler(sessions),
		DoctorWS:           wsHandler,
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		InitiateRate:       2,
		InitiateBurst:      10,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildStore picks the record store backend: Postgres when DATABASE_URL is
// set, the REST store when the Supabase-style credentials are, a warning
// no-op otherwise.
func buildStore(cfg *appconfig.Config, logger *logging.Logger, m *metrics.CallMetrics) appointments.Store {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		logger.Info("using Postgres record store")
		return appointments.NewPGStore(pool)
	}
	if cfg.StoreBaseURL != "" {
		store, err := appointments.NewRESTStore(appointments.RESTConfig{
			BaseURL: cfg.StoreBaseURL,
			APIKey:  cfg.StoreAPIKey,
			Timeout: cfg.StoreTimeout,
			Logger:  logger,
			Metrics: m,
		})
		if err != nil {
			logger.Error("failed to build record store client", "error", err)
			os.Exit(1)
		}
		logger.Info("using REST record store", "base_url", cfg.StoreBaseURL)
		return store
	}
	logger.Warn("no record store configured, appointments will not persist")
	return appointments.NewNullStore(logger)
}

func buildTranscriptStore(cfg *appconfig.Config, logger *logging.Logger) *transcripts.Store {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, transcript buffering disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	logger.Info("transcript buffer connected", "addr", cfg.RedisAddr)
	return transcripts.NewStore(client)
}
