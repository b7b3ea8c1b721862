package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradeboard.org/internal/audit"
	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/obs"
	"tradeboard.org/internal/profile"
)

// Store is the slice of the backing store the HTTP layer consumes.
type Store interface {
	ProfileByUserID(ctx context.Context, userID string) (profile.Profile, error)
	ListClientsWithProfiles(ctx context.Context) ([]profile.ClientListing, error)
	ListAuditEntries(ctx context.Context, limit, offset int) ([]audit.Entry, int, error)
	UpsertEmailStatus(ctx context.Context, emailID, recipient, subject, status string) error
	MarkEmailOpened(ctx context.Context, emailID string, openedAt time.Time) error
}

// Pinger verifies backing-store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks backing-store connectivity for /readyz.
type ReadyProbe struct {
	Pinger Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// API is the HTTP layer. Handlers re-verify identity and role on every
// request; client-side gates are advisory only.
type API struct {
	mux        *http.ServeMux
	provider   identity.Provider
	store      Store
	emitter    *audit.Emitter
	readyProbe ReadyProbe
	version    string
	siteURL    string

	webhookSecret string
	rateBurst     int
	ratePerSec    int
}

// Option configures the API.
type Option func(*API)

// WithSiteURL sets the fallback origin for invitation callback links.
func WithSiteURL(u string) Option {
	return func(a *API) { a.siteURL = strings.TrimRight(strings.TrimSpace(u), "/") }
}

// WithWebhookSecret requires webhook callers to present the shared secret.
func WithWebhookSecret(secret string) Option {
	return func(a *API) { a.webhookSecret = secret }
}

// WithRateLimit overrides the default per-IP rate limit.
func WithRateLimit(burst, perSec int) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSec > 0 {
			a.ratePerSec = perSec
		}
	}
}

// New wires routes to handlers.
func New(provider identity.Provider, store Store, emitter *audit.Emitter, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		provider:   provider,
		store:      store,
		emitter:    emitter,
		readyProbe: rp,
		version:    version,
		rateBurst:  20,
		ratePerSec: 10,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/audit-log", a.handleAuditLog)
	a.mux.HandleFunc("/v1/clients-with-status", a.handleClientsWithStatus)
	a.mux.HandleFunc("/v1/clients/resend-invitation", a.handleResendInvitation)
	a.mux.HandleFunc("/v1/webhooks/resend", a.handleResendWebhook)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the fully wrapped handler chain. CORS sits inside logging
// so pre-flights are still observable, but ahead of rate limiting and body
// limits: OPTIONS is answered before any other processing.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tradeboard-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tradeboard-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorCode(w, r, code, "", msg)
}

// writeErrorCode emits a structured error body. The optional code lets
// callers distinguish domain conflicts (already_confirmed) from generic
// failures of the same status.
func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if code != "" {
		payload["code"] = code
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("value must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("value out of range")
	}
	return val, nil
}
