package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the API process needs from the environment.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Identity IdentityConfig
	Webhook  WebhookConfig
	SiteURL  string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateBurst       int
	RatePerSecond   int
}

type DatabaseConfig struct {
	DSN string
}

type IdentityConfig struct {
	// BaseURL of the hosted identity provider (admin REST surface).
	BaseURL string
	// ServiceKey authorizes privileged admin calls (list users, invite).
	ServiceKey string
	// JWTSecret verifies access tokens issued by the provider (HS256).
	JWTSecret string
	// RequestTimeout bounds outbound provider calls.
	RequestTimeout time.Duration
}

type WebhookConfig struct {
	// SigningSecret, when set, must match the webhook signature header.
	// Empty means the sender is trusted at the network layer.
	SigningSecret string
}

// Load reads configuration from the environment, applying defaults and
// validating the values the process cannot run without.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("TRADEBOARD_HTTP_ADDR", ":8080"),
			ReadTimeout:     time.Duration(getEnvInt("TRADEBOARD_HTTP_READ_TIMEOUT_SEC", 15)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("TRADEBOARD_HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			IdleTimeout:     time.Duration(getEnvInt("TRADEBOARD_HTTP_IDLE_TIMEOUT_SEC", 60)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("TRADEBOARD_HTTP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
			RateBurst:       getEnvInt("TRADEBOARD_RATE_BURST", 20),
			RatePerSecond:   getEnvInt("TRADEBOARD_RATE_PER_SEC", 10),
		},
		Database: DatabaseConfig{
			DSN: getEnv("TRADEBOARD_PG_DSN", ""),
		},
		Identity: IdentityConfig{
			BaseURL:        getEnv("TRADEBOARD_IDP_URL", ""),
			ServiceKey:     getEnv("TRADEBOARD_IDP_SERVICE_KEY", ""),
			JWTSecret:      getEnv("TRADEBOARD_IDP_JWT_SECRET", ""),
			RequestTimeout: time.Duration(getEnvInt("TRADEBOARD_IDP_TIMEOUT_SEC", 10)) * time.Second,
		},
		Webhook: WebhookConfig{
			SigningSecret: getEnv("TRADEBOARD_WEBHOOK_SECRET", ""),
		},
		SiteURL: getEnv("TRADEBOARD_SITE_URL", "http://localhost:3000"),
	}

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("TRADEBOARD_HTTP_ADDR must not be empty")
	}
	if cfg.Identity.BaseURL == "" && cfg.Identity.JWTSecret == "" {
		return Config{}, fmt.Errorf("one of TRADEBOARD_IDP_URL or TRADEBOARD_IDP_JWT_SECRET is required")
	}
	if cfg.HTTP.RateBurst <= 0 || cfg.HTTP.RatePerSecond <= 0 {
		return Config{}, fmt.Errorf("rate limit settings must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
