package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists per-account counters.
//
// TryConsume must be a single atomic operation: it compares the counter of
// action against the ceiling of the account's current plan and increments
// it only when under the ceiling. It returns the counters after the
// decision and whether the unit was consumed.
type Store interface {
	EnsureAccount(ctx context.Context, userID uuid.UUID) error
	GetCounters(ctx context.Context, userID uuid.UUID) (Counters, error)
	TryConsume(ctx context.Context, userID uuid.UUID, action Action) (Counters, bool, error)
	Release(ctx context.Context, userID uuid.UUID, action Action) error
	ResetMonthlyCounters(ctx context.Context) (int64, error)
}

// WatermarkStore persists the timestamps of periodic jobs.
type WatermarkStore interface {
	// CreateWatermarkIfAbsent stores t under key unless a value exists.
	// It reports whether it created the row and returns the stored value.
	CreateWatermarkIfAbsent(ctx context.Context, key string, t time.Time) (bool, time.Time, error)
	SetWatermark(ctx context.Context, key string, t time.Time) error
}
