package gate

import (
	"testing"

	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/profile"
	"tradeboard.org/internal/session"
)

func snapWithRole(role profile.Role) session.Snapshot {
	return session.Snapshot{
		Identity: &identity.Identity{ID: "u1", Email: "u1@example.com"},
		Profile:  &profile.Profile{ID: "p1", UserID: "u1", Role: role},
	}
}

func TestGatesDeferWhileLoading(t *testing.T) {
	loading := []session.Snapshot{
		{Loading: true},
		{Loading: true, Identity: &identity.Identity{ID: "u1"}},
		{Loading: true, Identity: &identity.Identity{ID: "u1"}, Profile: &profile.Profile{Role: profile.RoleAdmin}},
	}
	for _, snap := range loading {
		if d := Admin(snap); d.Kind != Defer {
			t.Fatalf("Admin: expected Defer while loading, got %+v", d)
		}
		if d := User(snap); d.Kind != Defer {
			t.Fatalf("User: expected Defer while loading, got %+v", d)
		}
	}
}

func TestAdminGateUnauthenticated(t *testing.T) {
	d := Admin(session.Snapshot{})
	if d.Kind != Redirect || d.Target != SignInPath {
		t.Fatalf("expected redirect to sign-in, got %+v", d)
	}
}

func TestAdminGateByRole(t *testing.T) {
	cases := []struct {
		role   profile.Role
		kind   Kind
		target string
	}{
		{profile.RoleAdmin, Allow, ""},
		{profile.RoleClient, Redirect, PostJobPath},
		{profile.RoleUser, Redirect, SignInPath},
	}
	for _, tc := range cases {
		d := Admin(snapWithRole(tc.role))
		if d.Kind != tc.kind || d.Target != tc.target {
			t.Fatalf("Admin(%s): got %+v, want kind=%v target=%q", tc.role, d, tc.kind, tc.target)
		}
	}
}

func TestAdminGateIdentityWithoutProfile(t *testing.T) {
	snap := session.Snapshot{Identity: &identity.Identity{ID: "u1"}}
	d := Admin(snap)
	if d.Kind != Redirect || d.Target != SignInPath {
		t.Fatalf("expected redirect to sign-in without profile, got %+v", d)
	}
}

func TestUserGateAllowsUnauthenticated(t *testing.T) {
	if d := User(session.Snapshot{}); d.Kind != Allow {
		t.Fatalf("expected Allow for unauthenticated, got %+v", d)
	}
}

func TestUserGateByRole(t *testing.T) {
	cases := []struct {
		role   profile.Role
		kind   Kind
		target string
	}{
		{profile.RoleAdmin, Redirect, AdminDashboardPath},
		{profile.RoleClient, Allow, ""},
		{profile.RoleUser, Allow, ""},
	}
	for _, tc := range cases {
		d := User(snapWithRole(tc.role))
		if d.Kind != tc.kind || d.Target != tc.target {
			t.Fatalf("User(%s): got %+v, want kind=%v target=%q", tc.role, d, tc.kind, tc.target)
		}
	}
}
