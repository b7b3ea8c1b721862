package identity

import (
	"errors"
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	token, err := SignToken("secret", "user-1", "worker@example.com", time.Minute)
	if err != nil {
		t.Fatalf("SignToken error: %v", err)
	}
	v, err := NewTokenVerifier("secret")
	if err != nil {
		t.Fatalf("NewTokenVerifier error: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "worker@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := SignToken("secret-a", "user-1", "", time.Minute)
	if err != nil {
		t.Fatalf("SignToken error: %v", err)
	}
	v, _ := NewTokenVerifier("secret-b")
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := SignToken("secret", "user-1", "", time.Minute)
	if err != nil {
		t.Fatalf("SignToken error: %v", err)
	}
	v, _ := NewTokenVerifier("secret")
	v.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v, _ := NewTokenVerifier("secret")
	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestNewTokenVerifierRequiresSecret(t *testing.T) {
	if _, err := NewTokenVerifier("  "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
