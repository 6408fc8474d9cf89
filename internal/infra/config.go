package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Engine is the external node-graph image processor (ComfyUI API).
	EngineBaseURL         string
	EnginePollInterval    time.Duration
	EngineProbeTimeout    time.Duration
	EngineDispatchTimeout time.Duration // refinement path budget
	EngineJobTimeout      time.Duration // queue path budget

	WebhookURL     string
	WebhookAPIKey  string
	WebhookTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	CORSOrigins   []string
	DefaultLocale string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		EngineBaseURL:         getEnv("ENGINE_BASE_URL", "http://127.0.0.1:8188"),
		EnginePollInterval:    time.Millisecond * time.Duration(getEnvInt("ENGINE_POLL_INTERVAL_MS", 2000)),
		EngineProbeTimeout:    time.Second * time.Duration(getEnvInt("ENGINE_PROBE_TIMEOUT_SECONDS", 5)),
		EngineDispatchTimeout: time.Second * time.Duration(getEnvInt("ENGINE_DISPATCH_TIMEOUT_SECONDS", 300)),
		EngineJobTimeout:      time.Second * time.Duration(getEnvInt("ENGINE_JOB_TIMEOUT_SECONDS", 120)),

		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		WebhookAPIKey:  os.Getenv("WEBHOOK_API_KEY"),
		WebhookTimeout: time.Second * time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 30)),

		HTTPReadTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		// Must exceed the dispatch budget: the refinement endpoint blocks for
		// the whole engine round trip before writing its response.
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 320)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
