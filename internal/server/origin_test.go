package server

import "testing"

func TestOriginChecker(t *testing.T) {
	allowed := newOriginChecker([]string{"http://localhost:8080", "https://App.Example.com", "not a url", " "})

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:8080", true},
		{"HTTP://LOCALHOST:8080", true},
		{"https://app.example.com", true},
		{"http://evil.example.com", false},
		{"http://localhost:9999", false},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := allowed(tt.origin); got != tt.want {
			t.Errorf("allowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginCheckerWildcard(t *testing.T) {
	allowed := newOriginChecker([]string{"*"})
	if !allowed("http://anywhere.example") {
		t.Error("wildcard should allow any well-formed origin")
	}
	if allowed("") {
		t.Error("wildcard must still reject an empty origin")
	}
	if allowed("garbage") {
		t.Error("wildcard must still reject a malformed origin")
	}
}

func TestNormalizeOrigin(t *testing.T) {
	if got, ok := normalizeOrigin("HTTPS://Example.COM:443"); !ok || got != "https://example.com:443" {
		t.Errorf("normalizeOrigin = %q ok=%v", got, ok)
	}
	if _, ok := normalizeOrigin("://nope"); ok {
		t.Error("malformed origin accepted")
	}
}
