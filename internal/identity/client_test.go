package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUserFromTokenLocalVerification(t *testing.T) {
	v, err := NewTokenVerifier("secret")
	if err != nil {
		t.Fatalf("NewTokenVerifier error: %v", err)
	}
	c, err := NewClient("https://idp.example.com", "service-key", WithTokenVerifier(v))
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	token, err := SignToken("secret", "user-9", "boss@example.com", time.Minute)
	if err != nil {
		t.Fatalf("SignToken error: %v", err)
	}
	id, err := c.UserFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("UserFromToken error: %v", err)
	}
	if id.ID != "user-9" || id.Email != "boss@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := c.UserFromToken(context.Background(), "bogus"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUserFromTokenRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good-token":
			_ = json.NewEncoder(w).Encode(Identity{ID: "user-3", Email: "crew@example.com"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	id, err := c.UserFromToken(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("UserFromToken error: %v", err)
	}
	if id.ID != "user-3" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := c.UserFromToken(context.Background(), "bad-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	confirmed := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/users" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Fatalf("missing service key auth: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []Identity{
				{ID: "u1", Email: "a@example.com", EmailConfirmedAt: &confirmed},
				{ID: "u2", Email: "b@example.com"},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	users, err := c.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if !users[0].Confirmed() {
		t.Fatal("expected first user confirmed")
	}
	if users[1].Confirmed() {
		t.Fatal("expected second user unconfirmed")
	}
}

func TestInviteUserByEmail(t *testing.T) {
	var gotRedirect string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invite" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotRedirect = r.URL.Query().Get("redirect_to")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["email"] {
		case "pending@example.com":
			w.WriteHeader(http.StatusOK)
		case "confirmed@example.com":
			w.WriteHeader(http.StatusUnprocessableEntity)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if err := c.InviteUserByEmail(context.Background(), "pending@example.com", "https://app.example.com/auth"); err != nil {
		t.Fatalf("InviteUserByEmail error: %v", err)
	}
	if gotRedirect != "https://app.example.com/auth" {
		t.Fatalf("unexpected redirect_to: %q", gotRedirect)
	}

	if err := c.InviteUserByEmail(context.Background(), "confirmed@example.com", ""); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
	if err := c.InviteUserByEmail(context.Background(), "nobody@example.com", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "refresh_token" {
			t.Fatalf("unexpected grant type: %s", r.URL.RawQuery)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "bearer",
			"expires_in":    3600,
			"user":          Identity{ID: "u1", Email: "a@example.com"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	sess, err := c.RefreshSession(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("RefreshSession error: %v", err)
	}
	if sess.AccessToken != "access-2" || sess.RefreshToken != "refresh-2" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Expired(time.Now()) {
		t.Fatal("fresh session reported expired")
	}

	if _, err := c.RefreshSession(context.Background(), "stale"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestBusFanout(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx)
	bus.Publish(Event{Kind: EventSignedOut})

	select {
	case evt := <-ch:
		if evt.Kind != EventSignedOut {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.OccurredAt.IsZero() {
			t.Fatal("expected OccurredAt to be stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	// Channel closes once the context ends.
	for range ch {
	}
}
