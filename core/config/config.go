package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel     OTelConfig
	Dispatch DispatchConfig
	Events   EventsConfig
	Env      string
	Port     string
	CORS     []string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// DispatchConfig controls the outbound side: where sends go and how they are paced.
type DispatchConfig struct {
	IncidentEventsURL string
	ChangeEventsURL   string
	HTTPTimeout       time.Duration
	RatePerSec        int // 0 disables pacing
}

type EventsConfig struct {
	Dir string
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeReplay ServiceType = "replay"
)

const (
	DefaultIncidentEventsURL = "https://events.pagerduty.com/v2/enqueue"
	DefaultChangeEventsURL   = "https://events.pagerduty.com/v2/change/enqueue"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.replay for the replay CLI
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	env := getEnv("APP_ENV", "development")
	cfg := Config{
		Env:  env,
		Port: getEnv("PORT", "8080"),
		CORS: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5000"}),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "event-dispatcher"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    env,
		},
		Dispatch: DispatchConfig{
			IncidentEventsURL: getEnv("INCIDENT_EVENTS_URL", DefaultIncidentEventsURL),
			ChangeEventsURL:   getEnv("CHANGE_EVENTS_URL", DefaultChangeEventsURL),
			HTTPTimeout:       getEnvDuration("DISPATCH_HTTP_TIMEOUT", 30*time.Second),
			RatePerSec:        getEnvInt("DISPATCH_RATE_PER_SEC", 0),
		},
		Events: EventsConfig{
			Dir: getEnv("EVENTS_DIR", "generated_files"),
		},
	}

	if err := cfg.Dispatch.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.Events.Dir == "" {
		return Config{}, fmt.Errorf("EVENTS_DIR is required")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c DispatchConfig) Validate() error {
	for name, raw := range map[string]string{
		"INCIDENT_EVENTS_URL": c.IncidentEventsURL,
		"CHANGE_EVENTS_URL":   c.ChangeEventsURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) url, got %q", name, raw)
		}
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("DISPATCH_HTTP_TIMEOUT must be positive")
	}
	if c.RatePerSec < 0 {
		return fmt.Errorf("DISPATCH_RATE_PER_SEC must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
