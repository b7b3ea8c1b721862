package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/profile"
)

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// authenticate resolves the caller's identity from the bearer token. It
// writes the error response itself and returns ok=false on failure.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	token := extractBearerToken(r)
	if token == "" {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return identity.Identity{}, false
	}
	id, err := a.provider.UserFromToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidToken):
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		case errors.Is(err, identity.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "identity provider unavailable")
		default:
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		}
		return identity.Identity{}, false
	}
	return id, true
}

// requireAdmin authenticates the caller and checks the admin role against the
// profiles table. Role checks never trust token claims alone; the stored
// profile is the source of truth.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (identity.Identity, profile.Profile, bool) {
	id, ok := a.authenticate(w, r)
	if !ok {
		return identity.Identity{}, profile.Profile{}, false
	}
	p, err := a.store.ProfileByUserID(r.Context(), id.ID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, r, http.StatusForbidden, "admin access required")
			return identity.Identity{}, profile.Profile{}, false
		}
		writeError(w, r, http.StatusInternalServerError, "profile lookup failed")
		return identity.Identity{}, profile.Profile{}, false
	}
	if p.Role != profile.RoleAdmin || !p.IsActive {
		writeError(w, r, http.StatusForbidden, "admin access required")
		return identity.Identity{}, profile.Profile{}, false
	}
	return id, p, true
}
