package quota_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/burka/podpulse/internal/quota"
	"github.com/burka/podpulse/internal/quota/quotatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func TestResetter_ShouldReset(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	clock := newClock()
	r := quota.NewResetter(store, store, quota.WithClock(clock.Now))

	due, err := r.ShouldReset(ctx)
	require.NoError(t, err)
	assert.True(t, due, "first call ever is due")

	mark, ok := store.Watermark(quota.WatermarkKey)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), mark)

	due, err = r.ShouldReset(ctx)
	require.NoError(t, err)
	assert.False(t, due, "watermark was just created")

	clock.Advance(29 * 24 * time.Hour)
	due, err = r.ShouldReset(ctx)
	require.NoError(t, err)
	assert.False(t, due)

	clock.Advance(24 * time.Hour)
	due, err = r.ShouldReset(ctx)
	require.NoError(t, err)
	assert.True(t, due, "30 days elapsed")
}

func TestResetter_Run(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	clock := newClock()
	r := quota.NewResetter(store, store, quota.WithClock(clock.Now))

	free, starter, pro := uuid.New(), uuid.New(), uuid.New()
	store.Put(free, quota.Counters{Plan: quota.PlanFree, PodcastsTracked: 1, AIAnalysesUsed: 1, ChartsAccessed: 7})
	store.Put(starter, quota.Counters{Plan: quota.PlanStarter, PodcastsTracked: 3, AIAnalysesUsed: 10, ChartsAccessed: 50})
	store.Put(pro, quota.Counters{Plan: quota.PlanPro, PodcastsTracked: 12, AIAnalysesUsed: 400, ChartsAccessed: 900})

	res, err := r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Equal(t, int64(2), res.ResetCount)

	got, _ := store.Account(starter)
	assert.Equal(t, quota.Counters{Plan: quota.PlanStarter, PodcastsTracked: 3}, got)
	got, _ = store.Account(pro)
	assert.Equal(t, quota.Counters{Plan: quota.PlanPro, PodcastsTracked: 12}, got)

	// Free accounts keep their counters.
	got, _ = store.Account(free)
	assert.Equal(t, int64(1), got.AIAnalysesUsed)
	assert.Equal(t, int64(7), got.ChartsAccessed)

	// A second trigger within the window does nothing.
	store.Put(starter, quota.Counters{Plan: quota.PlanStarter, PodcastsTracked: 3, AIAnalysesUsed: 4})
	res, err = r.Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Ran)
	assert.Equal(t, 1, store.ResetCalls)
	got, _ = store.Account(starter)
	assert.Equal(t, int64(4), got.AIAnalysesUsed)

	clock.Advance(quota.DefaultResetInterval)
	res, err = r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Equal(t, 2, store.ResetCalls)

	mark, _ := store.Watermark(quota.WatermarkKey)
	assert.Equal(t, clock.Now(), mark)
}

func TestResetter_FailedResetKeepsWatermark(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	clock := newClock()
	start := clock.Now()
	r := quota.NewResetter(store, store, quota.WithClock(clock.Now))
	rr := quota.NewResetter(failingReset{store}, store, quota.WithClock(clock.Now))

	// Establish the watermark.
	_, err := r.ShouldReset(ctx)
	require.NoError(t, err)

	clock.Advance(31 * 24 * time.Hour)
	_, err = rr.Run(ctx)
	require.Error(t, err)

	mark, _ := store.Watermark(quota.WatermarkKey)
	assert.Equal(t, start, mark, "watermark must not advance when the reset failed")

	due, err := rr.ShouldReset(ctx)
	require.NoError(t, err)
	assert.True(t, due, "next trigger retries")
}

func TestResetter_WatermarkError(t *testing.T) {
	store := quotatest.NewStore()
	store.Fail(errors.New("db down"))
	r := quota.NewResetter(store, store)

	res, err := r.Run(context.Background())
	require.Error(t, err)
	assert.False(t, res.Ran)
}

func TestResetter_WithInterval(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	clock := newClock()
	r := quota.NewResetter(store, store, quota.WithClock(clock.Now), quota.WithInterval(time.Hour))

	_, err := r.Run(ctx)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	due, err := r.ShouldReset(ctx)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestResetter_RunEveryStopsOnCancel(t *testing.T) {
	store := quotatest.NewStore()
	r := quota.NewResetter(store, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunEvery(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := store.Watermark(quota.WatermarkKey)
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not return after cancel")
	}
	assert.Equal(t, 1, store.ResetCalls)
}

// failingReset wraps a store and fails ResetMonthlyCounters.
type failingReset struct {
	*quotatest.Store
}

func (failingReset) ResetMonthlyCounters(context.Context) (int64, error) {
	return 0, errors.New("statement timeout")
}
