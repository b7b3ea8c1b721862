package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/audit-log":                 "/v1/audit-log",
		"/v1/audit-log?page=2&limit=50": "/v1/audit-log",
		"/v1/clients-with-status":       "/v1/clients-with-status",
		"/v1/clients/resend-invitation": "/v1/clients/resend-invitation",
		"/v1/webhooks/resend":           "/v1/webhooks/resend",
		"/v1/webhooks/resend/":          "/v1/webhooks/resend",
		"/v1/clients/abc123":            "/other",
		"/assets/app.js":                "/other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
