package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/burka/podpulse/internal/quota"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialLiveLimits(t *testing.T, env *testEnv, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	srv := httptest.NewServer(env.server.Router())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/account/limits/live?access_token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestLiveLimits_PushesChanges(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	conn, _, err := dialLiveLimits(t, env, tokenFor(userID))
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first LimitsResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "free", first.Limits.Plan)
	assert.Equal(t, int64(0), first.Limits.AIAnalysesUsed)

	_, err = quota.NewGuard(env.store).Allow(context.Background(), userID, quota.ActionAIAnalysis)
	require.NoError(t, err)

	var next LimitsResponse
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, int64(1), next.Limits.AIAnalysesUsed)
	assert.True(t, next.Meters[string(quota.ActionAIAnalysis)].AtLimit)
}

func TestLiveLimits_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := dialLiveLimits(t, env, "bogus")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLiveLimits_StoreUnavailableBeforeUpgrade(t *testing.T) {
	env := newTestEnv(t)
	env.store.Fail(errBoom)

	_, resp, err := dialLiveLimits(t, env, tokenFor(uuid.New()))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLiveLimits_NonPositiveIntervalFallsBack(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Dependencies) {
		cfg.LiveLimitsInterval = 0
	})

	conn, _, err := dialLiveLimits(t, env, tokenFor(uuid.New()))
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first LimitsResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "free", first.Limits.Plan)

	// The stream stays open instead of dying with an abnormal closure.
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}
