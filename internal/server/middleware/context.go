package middleware

import "context"

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID    string
	SessionID string
}

// WithPrincipal returns a context carrying the authenticated principal.
// Handlers read it via PrincipalFrom, GetUserID, GetSessionID.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal and true if the request authenticated.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// GetUserID returns the authenticated user id and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok
}

// GetSessionID returns the authenticated session id and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.SessionID, ok
}
