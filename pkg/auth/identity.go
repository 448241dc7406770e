package auth

import "context"

type ctxKey int

const identityKey ctxKey = 0

// IdentityHeader carries the acting user id. The gateway trusts it only
// after the request has presented a valid API key (or unauthenticated
// access is explicitly enabled).
const IdentityHeader = "X-User-ID"

// WithIdentity returns a context carrying the acting user id.
func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey, userID)
}

// IdentityFrom returns the acting user id, or "" when the request was
// anonymous.
func IdentityFrom(ctx context.Context) string {
	if v, ok := ctx.Value(identityKey).(string); ok {
		return v
	}
	return ""
}
