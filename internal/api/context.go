package api

import (
	"context"

	"github.com/burka/podpulse/internal/auth"
	"github.com/google/uuid"
)

// ctxKey is a type for context keys to avoid collisions
type ctxKey string

const ctxPrincipal ctxKey = "principal"

// WithPrincipal adds the authenticated user to the request context.
// This is called by the authentication middleware after the token is verified.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

// GetPrincipal retrieves the authenticated user from the request context.
func GetPrincipal(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(auth.Principal)
	return p, ok
}

// GetUserID retrieves the authenticated user ID from the request context.
// Returns a zero UUID and false if the request is unauthenticated.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok || p.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return p.UserID, true
}
