package auth

import (
	"net/http"
	"strings"
)

// Extract pulls the caller's credential from the incoming request: the
// Authorization header (Bearer scheme) first, then the X-Api-Key header,
// then altHeader if configured. Returns ok=false if none carried a
// non-empty value, matching spec step 1 of the request orchestrator.
func Extract(r *http.Request, altHeader string) (string, bool) {
	if v := r.Header.Get("Authorization"); v != "" {
		return strings.TrimPrefix(v, "Bearer "), true
	}
	if v := r.Header.Get("X-Api-Key"); v != "" {
		return v, true
	}
	if altHeader != "" {
		if v := r.Header.Get(altHeader); v != "" {
			return v, true
		}
	}
	return "", false
}

// Mask renders a credential safe for logs: the first 6 and last 4
// characters, with the middle collapsed. Short credentials are masked
// entirely rather than partially exposed.
func Mask(credential string) string {
	if len(credential) <= 10 {
		return strings.Repeat("*", len(credential))
	}
	return credential[:6] + "..." + credential[len(credential)-4:]
}
