package auth

import "context"

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a copy of ctx carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by AuthenticationFilter.
// ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (identity string, ok bool) {
	identity, ok = ctx.Value(identityKey).(string)
	return identity, ok && identity != ""
}
