package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRADEBOARD_IDP_JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout: %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.SiteURL != "http://localhost:3000" {
		t.Fatalf("unexpected site url: %s", cfg.SiteURL)
	}
}

func TestLoadRequiresIdentityConfig(t *testing.T) {
	t.Setenv("TRADEBOARD_IDP_URL", "")
	t.Setenv("TRADEBOARD_IDP_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when no identity configuration is present")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRADEBOARD_HTTP_ADDR", ":9090")
	t.Setenv("TRADEBOARD_IDP_URL", "https://idp.example.com")
	t.Setenv("TRADEBOARD_IDP_SERVICE_KEY", "service-key")
	t.Setenv("TRADEBOARD_RATE_BURST", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Identity.BaseURL != "https://idp.example.com" {
		t.Fatalf("unexpected idp url: %s", cfg.Identity.BaseURL)
	}
	if cfg.HTTP.RateBurst != 5 {
		t.Fatalf("unexpected burst: %d", cfg.HTTP.RateBurst)
	}
}

func TestLoadRejectsBadRateLimits(t *testing.T) {
	t.Setenv("TRADEBOARD_IDP_JWT_SECRET", "test-secret")
	t.Setenv("TRADEBOARD_RATE_BURST", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative burst")
	}
}
