// Package jwt provides a non-blocking structural check for bearer tokens
// that look like JWTs. This gateway never verifies a token's signature or
// claims — it has no identity of its own to check them against, and the
// backend is the sole authority on whether a credential is actually
// valid. The only value added here is an earlier, clearer 401 for a
// token that isn't even shaped like a JWT, instead of an opaque failure
// once the request reaches the backend.
package jwt

import (
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// LooksLikeJWT reports whether credential has the three dot-separated
// segments every JWT has. A plain API key never matches this, so
// CheckShape is only meaningful when this returns true.
func LooksLikeJWT(credential string) bool {
	return strings.Count(credential, ".") == 2
}

// CheckShape verifies credential decodes as a structurally valid JWT —
// three base64url segments, header and payload each valid JSON — without
// verifying the signature. A syntactically valid JWT is always forwarded
// regardless of what CheckShape reports about its claims (there are none
// checked); only a structural decode failure is treated as an error.
func CheckShape(credential string) error {
	_, _, err := jwtlib.NewParser().ParseUnverified(credential, jwtlib.MapClaims{})
	return err
}
