// Package gate holds the route-guard decision functions. Gates are pure
// functions over a session snapshot and are advisory only: the privileged
// HTTP handlers re-derive identity and role from the bearer token on every
// request. Callers must re-evaluate the gate on every snapshot change and
// suppress rendering while a redirect is pending.
package gate

import (
	"tradeboard.org/internal/profile"
	"tradeboard.org/internal/session"
)

// Route targets used by gate redirects.
const (
	SignInPath         = "/auth"
	AdminDashboardPath = "/admin"
	PostJobPath        = "/post-job"
)

// Kind discriminates gate decisions.
type Kind int

const (
	// Defer means the session is still loading; render nothing yet.
	Defer Kind = iota
	// Allow renders the guarded content.
	Allow
	// Redirect navigates away and suppresses the guarded content.
	Redirect
)

// Decision is the outcome of evaluating a gate against a snapshot.
type Decision struct {
	Kind   Kind
	Target string
}

func allow() Decision { return Decision{Kind: Allow} }

func deferred() Decision { return Decision{Kind: Defer} }

func redirect(to string) Decision { return Decision{Kind: Redirect, Target: to} }

// Admin guards admin-only surfaces. Unauthenticated visitors go to sign-in;
// authenticated non-admins go to a role-appropriate landing page.
func Admin(snap session.Snapshot) Decision {
	if snap.Loading {
		return deferred()
	}
	if snap.Identity == nil {
		return redirect(SignInPath)
	}
	if snap.Profile == nil {
		// Identity without a finished profile never reaches admin surfaces.
		return redirect(SignInPath)
	}
	switch snap.Profile.Role {
	case profile.RoleAdmin:
		return allow()
	case profile.RoleClient:
		return redirect(PostJobPath)
	case profile.RoleUser:
		return redirect(SignInPath)
	default:
		return redirect(SignInPath)
	}
}

// User guards non-admin surfaces. Admins are pushed to their dashboard;
// everyone else, including unauthenticated visitors, is allowed. Callers
// that additionally require sign-in compose an identity check on top.
func User(snap session.Snapshot) Decision {
	if snap.Loading {
		return deferred()
	}
	if snap.Identity == nil || snap.Profile == nil {
		return allow()
	}
	switch snap.Profile.Role {
	case profile.RoleAdmin:
		return redirect(AdminDashboardPath)
	case profile.RoleClient, profile.RoleUser:
		return allow()
	default:
		return allow()
	}
}
