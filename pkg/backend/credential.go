package backend

import "context"

type credentialKey struct{}

// ContextWithCredential attaches the per-request forwarded credential — the
// Authorization bearer token (or equivalent header) extracted from the
// inbound client request — so Client forwards it unchanged instead of
// falling back to a statically configured backend API key.
func ContextWithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// CredentialFromContext returns the forwarded credential, if one was set.
func CredentialFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(credentialKey{}).(string)
	return v, ok && v != ""
}
