package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("profile: not found")
	ErrInvalidInput = errors.New("profile: invalid input")
)

// Role is the closed set of application roles. Redirect targets and
// privileged-handler checks switch exhaustively over these values; adding a
// role means visiting every switch.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
	RoleUser   Role = "user"
)

// ParseRole normalizes and validates a stored role value.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleClient:
		return RoleClient, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
}

func (r Role) String() string { return string(r) }

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClient, RoleUser:
		return true
	}
	return false
}

// Profile is the application-level record keyed 1:1 to a provider identity.
// Role is never empty once the profile exists.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is a company account posting job listings, joined to its profile.
type Client struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	CompanyName  string    `json:"company_name"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClientListing joins a client with the email of its owning profile, which
// is the account email the identity provider knows the client by.
type ClientListing struct {
	Client
	AccountEmail string `json:"email"`
}

// ClientWithStatus annotates a client listing with the identity provider's
// email-confirmation state.
type ClientWithStatus struct {
	ClientListing
	InvitationStatus InvitationStatus `json:"invitation_status"`
}

// InvitationStatus reflects whether a client account confirmed its email.
type InvitationStatus string

const (
	InvitationConfirmed InvitationStatus = "confirmed"
	InvitationPending   InvitationStatus = "pending"
)
