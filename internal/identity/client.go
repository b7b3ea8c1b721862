package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the hosted identity provider's REST surface. Admin calls
// (ListUsers, InviteUserByEmail) are authorized with the service key and must
// never be reachable from untrusted code paths.
type Client struct {
	baseURL    string
	serviceKey string
	verifier   *TokenVerifier
	httpClient *http.Client
}

// ClientOption configures the provider client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenVerifier enables local access-token verification, avoiding a
// network round-trip per privileged request.
func WithTokenVerifier(v *TokenVerifier) ClientOption {
	return func(c *Client) { c.verifier = v }
}

// WithRequestTimeout bounds every outbound call.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient constructs a provider client for the given base URL.
func NewClient(baseURL, serviceKey string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("identity: base URL is required")
	}
	c := &Client{
		baseURL:    baseURL,
		serviceKey: strings.TrimSpace(serviceKey),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Provider = (*Client)(nil)

// UserFromToken resolves an access token to its identity. With a verifier
// configured the signature is checked locally; otherwise the provider's
// /user endpoint is the authority.
func (c *Client) UserFromToken(ctx context.Context, accessToken string) (Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, ErrInvalidToken
	}
	if c.verifier != nil {
		claims, err := c.verifier.Verify(accessToken)
		if err != nil {
			return Identity{}, err
		}
		return Identity{ID: claims.Subject, Email: claims.Email}, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user Identity
	if err := c.do(req, &user); err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusUnauthorized || se.code == http.StatusForbidden) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if user.ID == "" {
		return Identity{}, ErrInvalidToken
	}
	return user, nil
}

// RefreshSession exchanges a refresh token for a fresh session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Session{}, ErrNoSession
	}
	body := map[string]string{"refresh_token": refreshToken}
	req, err := c.newRequest(ctx, http.MethodPost, "/token?grant_type=refresh_token", body)
	if err != nil {
		return Session{}, err
	}

	var payload struct {
		AccessToken  string   `json:"access_token"`
		RefreshToken string   `json:"refresh_token"`
		TokenType    string   `json:"token_type"`
		ExpiresIn    int64    `json:"expires_in"`
		User         Identity `json:"user"`
	}
	if err := c.do(req, &payload); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	if payload.AccessToken == "" {
		return Session{}, ErrNoSession
	}
	return Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second),
		User:         payload.User,
	}, nil
}

// ListUsers returns all provider accounts. Requires the service key.
func (c *Client) ListUsers(ctx context.Context) ([]Identity, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/users", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	var payload struct {
		Users []Identity `json:"users"`
	}
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	return payload.Users, nil
}

// InviteUserByEmail re-issues an invitation email. The redirect URL anchors
// the emailed callback link to the originating site.
func (c *Client) InviteUserByEmail(ctx context.Context, email, redirectTo string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return fmt.Errorf("identity: email is required")
	}
	path := "/invite"
	if redirectTo = strings.TrimSpace(redirectTo); redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, map[string]string{"email": email})
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	if err := c.do(req, nil); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			switch se.code {
			case http.StatusNotFound:
				return ErrNotFound
			case http.StatusUnprocessableEntity, http.StatusConflict:
				return ErrAlreadyConfirmed
			}
		}
		return err
	}
	return nil
}

// Helpers -----------------------------------------------------------------

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("identity: provider returned %d: %s", e.code, e.body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.serviceKey)
	return req, nil
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrUnavailable
		}
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			return ErrUnavailable
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
