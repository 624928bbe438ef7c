//go:build integration

package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/burka/podpulse/internal/quota"
	"github.com/burka/podpulse/internal/redisstore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// With STORE_BACKEND=redis the accounts table is never written by the
// quota layer, so content writes must create the row themselves.
func TestContentWritesWithRedisCounters(t *testing.T) {
	client := getTestDB(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	guard := quota.NewGuard(redisstore.New(rdb))

	id := uuid.New()
	t.Cleanup(func() {
		_, _ = client.pool.Exec(context.Background(), "DELETE FROM accounts WHERE id = $1", id)
	})

	_, err := client.GetCounters(ctx, id)
	require.ErrorIs(t, err, quota.ErrAccountNotFound, "account must only exist in redis")

	_, err = guard.Allow(ctx, id, quota.ActionTrackPodcast)
	require.NoError(t, err)
	p := &TrackedPodcast{UserID: id, PodcastID: "apple:123", Source: "apple", Title: "Morning Brief"}
	require.NoError(t, client.TrackPodcast(ctx, p))
	assert.ErrorIs(t, client.TrackPodcast(ctx, p), ErrAlreadyTracked)

	_, err = guard.Allow(ctx, id, quota.ActionAIAnalysis)
	require.NoError(t, err)
	a := &Analysis{UserID: id, Kind: "episode", Subject: "ep-1", Result: "summary"}
	require.NoError(t, client.CreateAnalysis(ctx, a))

	pgCounters, err := client.GetCounters(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, pgCounters.Plan)
	assert.Zero(t, pgCounters.PodcastsTracked, "postgres counters stay untouched")

	counters, err := redisstore.New(rdb).GetCounters(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.PodcastsTracked)
	assert.Equal(t, int64(1), counters.AIAnalysesUsed)

	list, err := client.ListTrackedPodcasts(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestContentWritesKeepExistingAccount(t *testing.T) {
	client := getTestDB(t)
	ctx := context.Background()
	id := createTestAccount(t, client, quota.PlanPro)

	require.NoError(t, client.CreateAnalysis(ctx, &Analysis{UserID: id, Kind: "trends", Subject: "news", Result: "up"}))

	counters, err := client.GetCounters(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanPro, counters.Plan, "plan must not be reset to free")
}
