package quota_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/burka/podpulse/internal/quota"
	"github.com/burka/podpulse/internal/quota/quotatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_AllowUpToCeiling(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	guard := quota.NewGuard(store)
	user := uuid.New()
	store.Put(user, quota.Counters{Plan: quota.PlanStarter})

	for i := 1; i <= 10; i++ {
		snap, err := guard.Allow(ctx, user, quota.ActionAIAnalysis)
		require.NoError(t, err, "analysis %d", i)
		assert.Equal(t, int64(i), snap.AIAnalysesUsed)
	}

	_, err := guard.Allow(ctx, user, quota.ActionAIAnalysis)
	require.Error(t, err)
	assert.ErrorIs(t, err, quota.ErrLimitExceeded)

	var denied *quota.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, quota.ReasonLimitExceeded, denied.Reason)
	assert.True(t, denied.HasSnapshot())
	assert.Equal(t, int64(10), denied.Snapshot.AIAnalysesUsed)
	assert.Contains(t, denied.Message, "10 AI analyses")
	assert.Contains(t, denied.Message, "starter plan")

	got, _ := store.Account(user)
	assert.Equal(t, int64(10), got.AIAnalysesUsed, "denied call must not consume")
}

func TestGuard_FreeUserScenario(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	guard := quota.NewGuard(store)
	user := uuid.New()

	// First access provisions a free account.
	snap, err := guard.Allow(ctx, user, quota.ActionTrackPodcast)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, snap.Plan)
	assert.Equal(t, int64(1), snap.PodcastsTracked)

	_, err = guard.Allow(ctx, user, quota.ActionTrackPodcast)
	require.ErrorIs(t, err, quota.ErrLimitExceeded)
	assert.Equal(t,
		"You've reached the limit of 1 tracked podcasts for your free plan. Upgrade to track more podcasts.",
		err.Error())

	_, err = guard.Allow(ctx, user, quota.ActionAIAnalysis)
	require.NoError(t, err)
	_, err = guard.Allow(ctx, user, quota.ActionAIAnalysis)
	require.ErrorIs(t, err, quota.ErrLimitExceeded)

	for i := 0; i < 10; i++ {
		_, err = guard.Allow(ctx, user, quota.ActionAccessCharts)
		require.NoError(t, err)
	}
	_, err = guard.Allow(ctx, user, quota.ActionAccessCharts)
	require.ErrorIs(t, err, quota.ErrLimitExceeded)
}

func TestGuard_UnboundedNeverDenies(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	guard := quota.NewGuard(store)
	user := uuid.New()
	store.Put(user, quota.Counters{Plan: quota.PlanAgency})

	for i := 0; i < 10_000; i++ {
		_, err := guard.Allow(ctx, user, quota.ActionTrackPodcast)
		require.NoError(t, err)
	}

	got, _ := store.Account(user)
	assert.Equal(t, int64(10_000), got.PodcastsTracked)
}

func TestGuard_ConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	guard := quota.NewGuard(store)
	user := uuid.New()
	store.Put(user, quota.Counters{Plan: quota.PlanStarter, PodcastsTracked: 4})

	const workers = 32
	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
		denied  atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.Allow(ctx, user, quota.ActionTrackPodcast)
			switch {
			case err == nil:
				allowed.Add(1)
			case errors.Is(err, quota.ErrLimitExceeded):
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load())
	assert.Equal(t, int32(workers-1), denied.Load())
	got, _ := store.Account(user)
	assert.Equal(t, int64(5), got.PodcastsTracked)
}

func TestGuard_FailsClosed(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")

	for _, action := range quota.Actions() {
		t.Run(string(action), func(t *testing.T) {
			store := quotatest.NewStore()
			store.Fail(storeErr)
			guard := quota.NewGuard(store)

			_, err := guard.Allow(ctx, uuid.New(), action)
			require.Error(t, err)
			assert.ErrorIs(t, err, quota.ErrStoreUnavailable)
			assert.ErrorIs(t, err, storeErr)
			assert.NotErrorIs(t, err, quota.ErrLimitExceeded)

			var denied *quota.DeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, quota.ReasonUnavailable, denied.Reason)
			assert.False(t, denied.HasSnapshot())
		})
	}
}

func TestGuard_InvalidAction(t *testing.T) {
	guard := quota.NewGuard(quotatest.NewStore())

	_, err := guard.Allow(context.Background(), uuid.New(), "export_data")
	require.ErrorIs(t, err, quota.ErrInvalidAction)

	var denied *quota.DeniedError
	assert.False(t, errors.As(err, &denied))
}

func TestGuard_ReleaseFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	guard := quota.NewGuard(store)
	user := uuid.New()
	store.Put(user, quota.Counters{Plan: quota.PlanFree, PodcastsTracked: 1})

	require.NoError(t, guard.Release(ctx, user, quota.ActionTrackPodcast))
	require.NoError(t, guard.Release(ctx, user, quota.ActionTrackPodcast))

	got, _ := store.Account(user)
	assert.Equal(t, int64(0), got.PodcastsTracked)

	// The freed slot can be used again.
	_, err := guard.Allow(ctx, user, quota.ActionTrackPodcast)
	assert.NoError(t, err)
}

func TestGuard_ReleaseStoreError(t *testing.T) {
	store := quotatest.NewStore()
	store.Fail(errors.New("timeout"))
	guard := quota.NewGuard(store)

	err := guard.Release(context.Background(), uuid.New(), quota.ActionAIAnalysis)
	assert.ErrorIs(t, err, quota.ErrStoreUnavailable)
}

func TestGuard_Limits(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	guard := quota.NewGuard(store)
	user := uuid.New()

	snap, err := guard.Limits(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, snap.Plan)
	assert.Equal(t, quota.Finite(1), snap.MaxPodcasts)
	assert.Equal(t, int64(0), snap.PodcastsTracked)

	store.Put(user, quota.Counters{Plan: quota.PlanPro, AIAnalysesUsed: 42})
	snap, err = guard.Limits(ctx, user)
	require.NoError(t, err)
	assert.True(t, snap.MaxAIAnalyses.IsUnbounded())
	assert.Equal(t, int64(42), snap.AIAnalysesUsed)

	store.Fail(errors.New("down"))
	_, err = guard.Limits(ctx, user)
	assert.ErrorIs(t, err, quota.ErrStoreUnavailable)
}

func TestGuard_UpgradeTakesEffectImmediately(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	guard := quota.NewGuard(store)
	user := uuid.New()
	store.Put(user, quota.Counters{Plan: quota.PlanFree, AIAnalysesUsed: 1})

	_, err := guard.Allow(ctx, user, quota.ActionAIAnalysis)
	require.ErrorIs(t, err, quota.ErrLimitExceeded)

	store.Put(user, quota.Counters{Plan: quota.PlanStarter, AIAnalysesUsed: 1})
	snap, err := guard.Allow(ctx, user, quota.ActionAIAnalysis)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.AIAnalysesUsed)
}
