package ws

import (
	"net/http"
	"strings"
)

// OriginPolicy is the ALLOWED_ORIGINS list shared by the websocket upgrade
// and the HTTP CORS headers. An empty list, or one containing "*", allows
// any origin.
type OriginPolicy struct {
	any bool
	set map[string]bool
}

func NewOriginPolicy(allowed []string) OriginPolicy {
	p := OriginPolicy{set: make(map[string]bool, len(allowed))}
	for _, o := range allowed {
		o = normalizeOrigin(o)
		if o == "*" {
			p.any = true
		} else if o != "" {
			p.set[o] = true
		}
	}
	if len(p.set) == 0 {
		p.any = true
	}
	return p
}

// AllowsAny reports whether the policy is a wildcard.
func (p OriginPolicy) AllowsAny() bool {
	return p.any
}

// Allows matches origin case-insensitively, ignoring a trailing slash.
func (p OriginPolicy) Allows(origin string) bool {
	if p.any {
		return true
	}
	origin = normalizeOrigin(origin)
	return origin != "" && p.set[origin]
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

func originChecker(p OriginPolicy) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		if origin == "" {
			return true
		}
		return p.Allows(origin)
	}
}
