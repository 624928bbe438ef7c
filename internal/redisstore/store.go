package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/burka/podpulse/internal/quota"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldPlan     = "plan"
	fieldPodcasts = "podcasts_tracked"
	fieldAnalyses = "ai_analyses_used"
	fieldCharts   = "charts_accessed"

	// DefaultPrefix namespaces every key written by the store.
	DefaultPrefix = "podpulse:"

	scanBatch = 200
)

var (
	_ quota.Store          = (*Store)(nil)
	_ quota.WatermarkStore = (*Store)(nil)
)

// consumeScript increments ARGV[1] when it is below the ceiling of the
// account's plan. ARGV[2..] are plan/ceiling pairs; an empty ceiling is
// unbounded and a plan missing from the list has a ceiling of 0.
// Returns false for a missing account, else {consumed, plan, p, a, c}.
var consumeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local plan = redis.call('HGET', KEYS[1], 'plan') or ''
local allowed = false
for i = 2, #ARGV, 2 do
  if ARGV[i] == plan then
    local used = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
    allowed = ARGV[i + 1] == '' or used < tonumber(ARGV[i + 1])
    break
  end
end
local consumed = 0
if allowed then
  redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
  consumed = 1
end
local v = redis.call('HMGET', KEYS[1], 'podcasts_tracked', 'ai_analyses_used', 'charts_accessed')
return {consumed, plan, v[1] or '0', v[2] or '0', v[3] or '0'}
`)

// releaseScript decrements ARGV[1] unless it is already 0.
// Returns -1 for a missing account.
var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local used = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if used > 0 then
  redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
end
return 1
`)

// resetScript zeroes the monthly counters of the accounts in KEYS whose plan
// is one of ARGV. Returns the number of accounts reset.
var resetScript = redis.NewScript(`
local paid = {}
for _, p in ipairs(ARGV) do paid[p] = true end
local n = 0
for _, key in ipairs(KEYS) do
  local plan = redis.call('HGET', key, 'plan')
  if plan and paid[plan] then
    redis.call('HSET', key, 'ai_analyses_used', 0, 'charts_accessed', 0)
    n = n + 1
  end
end
return n
`)

// Store is a quota.Store and quota.WatermarkStore backed by Redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store using rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) accountKey(userID uuid.UUID) string {
	return s.prefix + "account:" + userID.String()
}

func (s *Store) customerKey(customerID string) string {
	return s.prefix + "customer:" + customerID
}

func (s *Store) settingKey(key string) string {
	return s.prefix + "setting:" + key
}

func counterField(action quota.Action) (string, error) {
	switch action {
	case quota.ActionTrackPodcast:
		return fieldPodcasts, nil
	case quota.ActionAIAnalysis:
		return fieldAnalyses, nil
	case quota.ActionAccessCharts:
		return fieldCharts, nil
	}
	return "", fmt.Errorf("%w: %q", quota.ErrInvalidAction, action)
}

// Health pings the server.
func (s *Store) Health(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// EnsureAccount creates a free account with zero counters unless one exists.
func (s *Store) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	key := s.accountKey(userID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldPlan, string(quota.PlanFree))
		pipe.HSetNX(ctx, key, fieldPodcasts, 0)
		pipe.HSetNX(ctx, key, fieldAnalyses, 0)
		pipe.HSetNX(ctx, key, fieldCharts, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

// GetCounters returns the plan and usage counters of an account.
func (s *Store) GetCounters(ctx context.Context, userID uuid.UUID) (quota.Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.accountKey(userID)).Result()
	if err != nil {
		return quota.Counters{}, fmt.Errorf("failed to get counters: %w", err)
	}
	if len(vals) == 0 {
		return quota.Counters{}, quota.ErrAccountNotFound
	}

	c := quota.Counters{Plan: quota.PlanID(vals[fieldPlan])}
	for field, dst := range map[string]*int64{
		fieldPodcasts: &c.PodcastsTracked,
		fieldAnalyses: &c.AIAnalysesUsed,
		fieldCharts:   &c.ChartsAccessed,
	} {
		if *dst, err = parseCount(vals[field]); err != nil {
			return quota.Counters{}, fmt.Errorf("corrupt %s for %s: %w", field, userID, err)
		}
	}
	return c, nil
}

// TryConsume atomically increments the counter of action when it is below
// the ceiling of the account's current plan.
func (s *Store) TryConsume(ctx context.Context, userID uuid.UUID, action quota.Action) (quota.Counters, bool, error) {
	field, err := counterField(action)
	if err != nil {
		return quota.Counters{}, false, err
	}
	plans, ceilings, err := quota.CeilingsFor(action)
	if err != nil {
		return quota.Counters{}, false, err
	}

	args := make([]any, 0, 1+2*len(plans))
	args = append(args, field)
	for i, p := range plans {
		ceiling := ""
		if ceilings[i] != nil {
			ceiling = strconv.FormatInt(*ceilings[i], 10)
		}
		args = append(args, p, ceiling)
	}

	res, err := consumeScript.Run(ctx, s.rdb, []string{s.accountKey(userID)}, args...).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return quota.Counters{}, false, quota.ErrAccountNotFound
		}
		return quota.Counters{}, false, fmt.Errorf("failed to consume %s: %w", action, err)
	}

	return decodeConsume(res)
}

func decodeConsume(res []any) (quota.Counters, bool, error) {
	if len(res) != 5 {
		return quota.Counters{}, false, fmt.Errorf("unexpected consume reply of length %d", len(res))
	}
	consumed, ok := res[0].(int64)
	if !ok {
		return quota.Counters{}, false, fmt.Errorf("unexpected consume flag %T", res[0])
	}
	plan, _ := res[1].(string)

	c := quota.Counters{Plan: quota.PlanID(plan)}
	dsts := []*int64{&c.PodcastsTracked, &c.AIAnalysesUsed, &c.ChartsAccessed}
	for i, dst := range dsts {
		raw, _ := res[2+i].(string)
		n, err := parseCount(raw)
		if err != nil {
			return quota.Counters{}, false, err
		}
		*dst = n
	}
	return c, consumed == 1, nil
}

// Release decrements the counter of action, never below zero.
func (s *Store) Release(ctx context.Context, userID uuid.UUID, action quota.Action) error {
	field, err := counterField(action)
	if err != nil {
		return err
	}
	n, err := releaseScript.Run(ctx, s.rdb, []string{s.accountKey(userID)}, field).Int64()
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", action, err)
	}
	if n < 0 {
		return quota.ErrAccountNotFound
	}
	return nil
}

// ResetMonthlyCounters zeroes the monthly counters of every paid account.
// Accounts are visited with SCAN in batches; each batch is reset atomically.
func (s *Store) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	paid := make([]any, 0, 3)
	for _, p := range quota.PaidPlans() {
		paid = append(paid, string(p))
	}

	var (
		total  int64
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+"account:*", scanBatch).Result()
		if err != nil {
			return total, fmt.Errorf("failed to scan accounts: %w", err)
		}
		if len(keys) > 0 {
			n, err := resetScript.Run(ctx, s.rdb, keys, paid...).Int64()
			if err != nil {
				return total, fmt.Errorf("failed to reset monthly counters: %w", err)
			}
			total += n
		}
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// CreateWatermarkIfAbsent stores t under key unless a value exists.
func (s *Store) CreateWatermarkIfAbsent(ctx context.Context, key string, t time.Time) (bool, time.Time, error) {
	rkey := s.settingKey(key)
	created, err := s.rdb.SetNX(ctx, rkey, t.UTC().Format(time.RFC3339Nano), 0).Result()
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to create watermark: %w", err)
	}
	if created {
		return true, t.UTC(), nil
	}

	raw, err := s.rdb.Get(ctx, rkey).Result()
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}
	stored, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("corrupt watermark %q: %w", raw, err)
	}
	return false, stored, nil
}

// SetWatermark overwrites the value stored under key.
func (s *Store) SetWatermark(ctx context.Context, key string, t time.Time) error {
	if err := s.rdb.Set(ctx, s.settingKey(key), t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}

// SetPlan changes the plan of an account, creating it if missing, and links
// customerID to it when non-empty.
func (s *Store) SetPlan(ctx context.Context, userID uuid.UUID, plan quota.PlanID, customerID string) error {
	if !plan.Known() {
		return fmt.Errorf("unknown plan %q", plan)
	}
	key := s.accountKey(userID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldPlan, string(plan))
		pipe.HSetNX(ctx, key, fieldPodcasts, 0)
		pipe.HSetNX(ctx, key, fieldAnalyses, 0)
		pipe.HSetNX(ctx, key, fieldCharts, 0)
		if customerID != "" {
			pipe.HSet(ctx, key, "stripe_customer_id", customerID)
			pipe.Set(ctx, s.customerKey(customerID), userID.String(), 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	return nil
}

// SetPlanByCustomer changes the plan of the account linked to customerID.
func (s *Store) SetPlanByCustomer(ctx context.Context, customerID string, plan quota.PlanID) error {
	raw, err := s.rdb.Get(ctx, s.customerKey(customerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return quota.ErrAccountNotFound
		}
		return fmt.Errorf("failed to resolve customer: %w", err)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("corrupt customer mapping %q: %w", raw, err)
	}
	return s.SetPlan(ctx, userID, plan, "")
}

// StripeCustomerID returns the Stripe customer linked to an account.
func (s *Store) StripeCustomerID(ctx context.Context, userID uuid.UUID) (string, error) {
	vals, err := s.rdb.HMGet(ctx, s.accountKey(userID), fieldPlan, "stripe_customer_id").Result()
	if err != nil {
		return "", fmt.Errorf("failed to get stripe customer: %w", err)
	}
	if vals[0] == nil {
		return "", quota.ErrAccountNotFound
	}
	id, _ := vals[1].(string)
	return id, nil
}

// SetStripeCustomerID links an account to a Stripe customer.
func (s *Store) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	key := s.accountKey(userID)
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	if exists == 0 {
		return quota.ErrAccountNotFound
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "stripe_customer_id", customerID)
		pipe.Set(ctx, s.customerKey(customerID), userID.String(), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	return nil
}

func parseCount(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}
