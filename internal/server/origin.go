package server

import (
	"net/url"
	"strings"

	"log/slog"
)

// newOriginChecker precomputes the allow-list once. "*" anywhere in the
// configured origins allows everything.
func newOriginChecker(origins []string) func(origin string) bool {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		allowed[normalized] = struct{}{}
	}

	return func(origin string) bool {
		if origin == "" {
			return false
		}
		normalized, ok := normalizeOrigin(origin)
		if !ok {
			return false
		}
		if allowAll {
			return true
		}
		_, exists := allowed[normalized]
		return exists
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
