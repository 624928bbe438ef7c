package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

// SupabaseVerifier validates tokens by asking Supabase Auth for the user
// they belong to. Signature and expiry checks happen on the provider side.
type SupabaseVerifier struct {
	client *supabase.Client
}

// NewSupabaseVerifier creates a verifier for the project at url.
func NewSupabaseVerifier(url, anonKey string) (*SupabaseVerifier, error) {
	if url == "" || anonKey == "" {
		return nil, fmt.Errorf("supabase URL and anon key must be provided")
	}

	client, err := supabase.NewClient(url, anonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	slog.Info("supabase auth verifier initialized", "url", url)
	return &SupabaseVerifier{client: client}, nil
}

// Verify resolves token to the Supabase user it was issued for.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrInvalidToken
	}

	type result struct {
		p   Principal
		err error
	}
	done := make(chan result, 1)

	// The client has no context support; bound the call by ctx here.
	go func() {
		user, err := v.client.Auth.WithToken(token).GetUser()
		if err != nil {
			done <- result{err: classify(err)}
			return
		}
		if user.ID == uuid.Nil {
			done <- result{err: ErrInvalidToken}
			return
		}
		done <- result{p: Principal{UserID: user.ID, Email: user.Email}}
	}()

	select {
	case <-ctx.Done():
		return Principal{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, ctx.Err())
	case r := <-done:
		return r.p, r.err
	}
}

func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status code 5") || strings.Contains(msg, "connection refused") {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidToken, err)
}
