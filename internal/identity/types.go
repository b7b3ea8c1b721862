package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidToken indicates the access token failed verification.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrNotFound indicates no account matches the lookup.
	ErrNotFound = errors.New("identity: account not found")
	// ErrAlreadyConfirmed indicates an invitation cannot be re-sent because
	// the account already confirmed its email.
	ErrAlreadyConfirmed = errors.New("identity: email already confirmed")
	// ErrNoSession indicates no live session could be established.
	ErrNoSession = errors.New("identity: no live session")
	// ErrUnavailable indicates the provider did not answer in time.
	ErrUnavailable = errors.New("identity: provider unavailable")
)

// Identity is the opaque authentication principal owned by the provider.
// The application only ever holds a reference to it.
type Identity struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastSignInAt     *time.Time `json:"last_sign_in_at,omitempty"`
}

// Confirmed reports whether the account's email has been confirmed.
func (i Identity) Confirmed() bool {
	return i.EmailConfirmedAt != nil && !i.EmailConfirmedAt.IsZero()
}

// Session pairs an identity with its tokens. It is supplied by the provider
// and never persisted beyond the credential cache.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Expired reports whether the access token lifetime has elapsed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Provider is the surface of the external identity service the application
// consumes. Admin operations require the service key; UserFromToken is the
// authoritative token-to-identity resolution used by privileged handlers.
type Provider interface {
	UserFromToken(ctx context.Context, accessToken string) (Identity, error)
	RefreshSession(ctx context.Context, refreshToken string) (Session, error)
	ListUsers(ctx context.Context) ([]Identity, error)
	InviteUserByEmail(ctx context.Context, email, redirectTo string) error
}
