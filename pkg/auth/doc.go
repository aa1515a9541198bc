// Package auth extracts the caller's credential from an incoming request
// and forwards it to the backend unchanged. This gateway has no identity
// of its own to check a credential against — whatever the backend accepts
// is authoritative — so there is no authenticator chain, no JWKS fetch, no
// identity or scopes. The only validation offered is an optional,
// non-blocking JWT structural check that produces an earlier, clearer
// 401 for a token that is not even shaped like a JWT, when the operator
// opts into it.
package auth
