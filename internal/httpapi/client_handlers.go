package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tradeboard.org/internal/audit"
	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/obs"
	"tradeboard.org/internal/profile"
)

// handleClientsWithStatus joins the client roster with provider accounts and
// annotates each client with whether their invitation email was confirmed.
func (a *API) handleClientsWithStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	clients, err := a.store.ListClientsWithProfiles(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list clients")
		return
	}

	confirmed := make(map[string]bool)
	users, err := a.provider.ListUsers(r.Context())
	if err != nil {
		// The roster is still useful without confirmation state; every
		// client degrades to pending rather than failing the whole page.
		obs.LogError("list_users_failed", map[string]any{"error": err.Error()})
	} else {
		for _, u := range users {
			confirmed[strings.ToLower(u.Email)] = u.Confirmed()
		}
	}

	out := make([]profile.ClientWithStatus, 0, len(clients))
	for _, c := range clients {
		status := profile.InvitationPending
		if confirmed[strings.ToLower(c.AccountEmail)] {
			status = profile.InvitationConfirmed
		}
		out = append(out, profile.ClientWithStatus{
			ClientListing:    c,
			InvitationStatus: status,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"clients": out,
	})
}

type resendInvitationRequest struct {
	Email string `json:"email"`
}

// handleResendInvitation re-sends the signup invitation for an unconfirmed
// account. Already-confirmed accounts are rejected with a distinct code so
// callers can surface a password-reset hint instead.
func (a *API) handleResendInvitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	admin, _, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	var req resendInvitationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	users, err := a.provider.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "identity provider unavailable")
		return
	}
	var account *identity.Identity
	for i := range users {
		if strings.ToLower(users[i].Email) == email {
			account = &users[i]
			break
		}
	}
	if account == nil {
		writeError(w, r, http.StatusNotFound, "no account exists for that email")
		return
	}
	if account.Confirmed() {
		writeErrorCode(w, r, http.StatusBadRequest, "already_confirmed",
			"account already confirmed; use password reset instead")
		return
	}

	redirectTo := a.siteURL
	if origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/"); origin != "" {
		redirectTo = origin
	}
	if redirectTo != "" {
		redirectTo += "/auth"
	}

	if err := a.provider.InviteUserByEmail(r.Context(), email, redirectTo); err != nil {
		switch {
		case errors.Is(err, identity.ErrAlreadyConfirmed):
			writeErrorCode(w, r, http.StatusBadRequest, "already_confirmed",
				"account already confirmed; use password reset instead")
		case errors.Is(err, identity.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "no account exists for that email")
		default:
			writeError(w, r, http.StatusBadGateway, "failed to resend invitation")
		}
		return
	}

	a.emitter.Emit(audit.Entry{
		UserID:       admin.ID,
		ActionType:   "invitation.resend",
		ResourceType: "client_account",
		Details:      map[string]any{"email": email},
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"email":   email,
		"message": "invitation re-sent",
	})
}
