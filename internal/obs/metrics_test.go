package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/metrics", "/metrics"},
		{"/v1/auth/login", "/v1/auth/login"},
		{"/v1/auth/verify?probe=1", "/v1/auth/verify"},
		{"/v1/user/permissions?x=y", "/v1/user/permissions"},
	}
	for _, tc := range cases {
		if got := CanonicalPath(tc.input); got != tc.expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", tc.input, got, tc.expected)
		}
	}
}
