package config

import (
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	FrontendURL        string
	CORSAllowedOrigins []string

	// OpenAI (speech service + transcript extraction)
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	RealtimeModel   string
	RealtimeVoice   string
	ExtractionModel string

	// External workflow engine callback
	WorkflowCallbackURL     string
	WorkflowCallbackTimeout time.Duration

	// Appointment record store (Supabase-style REST)
	StoreBaseURL string
	StoreAPIKey  string
	StoreTimeout time.Duration

	// Optional Postgres-backed store (self-hosted deployments)
	DatabaseURL string

	// Redis transcript buffer
	RedisAddr     string
	RedisPassword string

	// Admin surface
	AdminJWTSecret string

	// Ring timeout before an unanswered session is marked timed out.
	RingTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	frontendURL := getEnv("FRONTEND_URL", "http://localhost:3000")
	origins := splitCSV(getEnv("CORS_ALLOWED_ORIGINS", ""))
	if len(origins) == 0 {
		origins = []string{frontendURL, "http://localhost:3000"}
	}

	return &Config{
		Port:               getEnv("PORT", "3001"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		FrontendURL:        frontendURL,
		CORSAllowedOrigins: origins,

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		RealtimeModel:   getEnv("REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		RealtimeVoice:   getEnv("REALTIME_VOICE", "ash"),
		ExtractionModel: getEnv("EXTRACTION_MODEL", "gpt-4o"),

		WorkflowCallbackURL:     getEnv("WORKFLOW_CALLBACK_URL", "http://localhost:8000/callback"),
		WorkflowCallbackTimeout: getEnvAsDuration("WORKFLOW_CALLBACK_TIMEOUT", 5*time.Second),

		StoreBaseURL: getEnv("APPOINTMENT_STORE_URL", ""),
		StoreAPIKey:  getEnv("APPOINTMENT_STORE_KEY", ""),
		StoreTimeout: getEnvAsDuration("APPOINTMENT_STORE_TIMEOUT", 5*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		RingTimeout: getEnvAsDuration("RING_TIMEOUT", 45*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
