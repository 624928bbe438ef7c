package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/burka/podpulse/internal/metrics"
)

// WatermarkKey is the settings key holding the last counter reset time.
const WatermarkKey = "last_counters_reset"

// DefaultResetInterval is the rolling window between monthly resets.
const DefaultResetInterval = 30 * 24 * time.Hour

// ResetResult reports the outcome of Resetter.Run.
type ResetResult struct {
	Ran        bool
	ResetCount int64
}

// Resetter zeroes monthly counters at most once per interval.
// It is meant to be triggered more often than the interval (for example
// daily); the persisted watermark makes extra triggers no-ops.
type Resetter struct {
	store    Store
	marks    WatermarkStore
	interval time.Duration
	now      func() time.Time
}

// ResetterOption configures a Resetter.
type ResetterOption func(*Resetter)

// WithInterval overrides DefaultResetInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) ResetterOption {
	return func(r *Resetter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ResetterOption {
	return func(r *Resetter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResetter creates a Resetter over the given stores.
func NewResetter(store Store, marks WatermarkStore, opts ...ResetterOption) *Resetter {
	r := &Resetter{
		store:    store,
		marks:    marks,
		interval: DefaultResetInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ShouldReset reports whether a reset is due. The first call ever creates
// the watermark with the current time and reports due.
func (r *Resetter) ShouldReset(ctx context.Context) (bool, error) {
	now := r.now().UTC()
	created, last, err := r.marks.CreateWatermarkIfAbsent(ctx, WatermarkKey, now)
	if err != nil {
		return false, fmt.Errorf("failed to read reset watermark: %w", err)
	}
	if created {
		return true, nil
	}
	return now.Sub(last) >= r.interval, nil
}

// Run resets monthly counters when due. The watermark advances only after
// the reset completed, so a crash in between causes one extra reset on the
// next trigger instead of a skipped one.
func (r *Resetter) Run(ctx context.Context) (ResetResult, error) {
	due, err := r.ShouldReset(ctx)
	if err != nil {
		metrics.CounterResetRunsTotal.WithLabelValues("error").Inc()
		return ResetResult{}, err
	}
	if !due {
		metrics.CounterResetRunsTotal.WithLabelValues("not_due").Inc()
		slog.Info("monthly counter reset not due yet")
		return ResetResult{}, nil
	}

	count, err := r.store.ResetMonthlyCounters(ctx)
	if err != nil {
		metrics.CounterResetRunsTotal.WithLabelValues("error").Inc()
		return ResetResult{}, fmt.Errorf("failed to reset monthly counters: %w", err)
	}

	if err := r.marks.SetWatermark(ctx, WatermarkKey, r.now().UTC()); err != nil {
		metrics.CounterResetRunsTotal.WithLabelValues("error").Inc()
		return ResetResult{Ran: true, ResetCount: count}, fmt.Errorf("failed to update reset watermark: %w", err)
	}

	metrics.CounterResetRunsTotal.WithLabelValues("reset").Inc()
	metrics.CounterResetAccounts.Add(float64(count))
	slog.Info("monthly counters reset", "accounts", count)
	return ResetResult{Ran: true, ResetCount: count}, nil
}

// RunEvery triggers Run on every tick until ctx is done. It runs once
// immediately. Errors are logged; the next tick retries.
func (r *Resetter) RunEvery(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := r.Run(ctx); err != nil {
			slog.Error("scheduled counter reset failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
