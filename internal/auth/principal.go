package auth

import (
	"context"
	"time"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

type principalKey struct{}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal placed on ctx by the
// authentication middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.AccountID != ""
}
