package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/burka/podpulse/internal/metrics"
	"github.com/google/uuid"
)

// Guard enforces plan ceilings in front of metered operations.
//
// Allow is the only entry point that turns store failures into denials:
// callers receive either a Snapshot or a *DeniedError, never a raw store
// error. Every failure is closed; an unreachable store never grants usage.
type Guard struct {
	store Store
}

// NewGuard creates a Guard backed by store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Allow provisions the account if needed and atomically consumes one unit
// of action. On success the returned snapshot already includes the unit.
// Denied calls leave the counters untouched, so retrying after an upgrade
// is safe.
func (g *Guard) Allow(ctx context.Context, userID uuid.UUID, action Action) (Snapshot, error) {
	if !action.Valid() {
		slog.Error("invalid action reached quota guard", "action", action, "user_id", userID)
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if err := g.store.EnsureAccount(ctx, userID); err != nil {
		return g.unavailable(ctx, userID, action, err)
	}

	counters, consumed, err := g.store.TryConsume(ctx, userID, action)
	if err != nil {
		if errors.Is(err, ErrInvalidAction) {
			slog.Error("store rejected action", "action", action, "error", err)
			return Snapshot{}, err
		}
		return g.unavailable(ctx, userID, action, err)
	}

	snap := NewSnapshot(counters)
	if !consumed {
		metrics.QuotaDecisionsTotal.WithLabelValues(string(action), metrics.OutcomeDenied).Inc()
		used, _ := counters.Used(action)
		ceiling, _ := snap.Ceiling(action)
		slog.Info("quota limit reached",
			"user_id", userID,
			"action", action,
			"plan", counters.Plan,
			"used", used,
			"limit", ceiling.String(),
		)
		return snap, limitExceeded(action, snap)
	}

	metrics.QuotaDecisionsTotal.WithLabelValues(string(action), metrics.OutcomeAllowed).Inc()
	return snap, nil
}

func (g *Guard) unavailable(ctx context.Context, userID uuid.UUID, action Action, err error) (Snapshot, error) {
	metrics.QuotaDecisionsTotal.WithLabelValues(string(action), metrics.OutcomeUnavailable).Inc()
	slog.ErrorContext(ctx, "quota store unavailable, denying action",
		"user_id", userID,
		"action", action,
		"error", err,
	)
	return Snapshot{}, unavailable(action, err)
}

// Release returns one unit of action to the user. It is called when the
// guarded operation fails after Allow succeeded, and when a podcast is
// untracked. Counters never go below zero.
func (g *Guard) Release(ctx context.Context, userID uuid.UUID, action Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if err := g.store.Release(ctx, userID, action); err != nil {
		slog.ErrorContext(ctx, "failed to release quota unit",
			"user_id", userID,
			"action", action,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	metrics.QuotaReleasesTotal.WithLabelValues(string(action)).Inc()
	return nil
}

// Limits returns the current snapshot without consuming anything,
// provisioning a free account on first access.
func (g *Guard) Limits(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	if err := g.store.EnsureAccount(ctx, userID); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	counters, err := g.store.GetCounters(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return NewSnapshot(counters), nil
}
