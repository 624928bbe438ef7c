// Package auth verifies access tokens issued by the identity provider.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidToken means the token was rejected by the identity provider.
var ErrInvalidToken = errors.New("invalid or expired access token")

// ErrProviderUnavailable means the identity provider could not be reached.
var ErrProviderUnavailable = errors.New("identity provider unavailable")

// Principal is the authenticated user behind a request.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

// Verifier resolves a bearer token to a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (Principal, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (Principal, error) {
	return f(ctx, token)
}
