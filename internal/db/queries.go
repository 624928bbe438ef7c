package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/burka/podpulse/internal/quota"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	_ quota.Store          = (*Client)(nil)
	_ quota.WatermarkStore = (*Client)(nil)
)

func scanCounters(row pgx.Row) (quota.Counters, error) {
	var (
		c    quota.Counters
		plan string
	)
	if err := row.Scan(&plan, &c.PodcastsTracked, &c.AIAnalysesUsed, &c.ChartsAccessed); err != nil {
		return quota.Counters{}, err
	}
	c.Plan = quota.PlanID(plan)
	return c, nil
}

// counterColumn maps an action to its column. Column names never come from
// input; unknown actions are rejected here.
func counterColumn(action quota.Action) (string, error) {
	switch action {
	case quota.ActionTrackPodcast:
		return "podcasts_tracked", nil
	case quota.ActionAIAnalysis:
		return "ai_analyses_used", nil
	case quota.ActionAccessCharts:
		return "charts_accessed", nil
	}
	return "", fmt.Errorf("%w: %q", quota.ErrInvalidAction, action)
}

// EnsureAccount creates a free account with zero counters unless one exists.
// Concurrent first requests for the same user are safe.
func (c *Client) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO accounts (id, plan, created_at, updated_at)
		VALUES ($1, 'free', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := c.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

// GetCounters returns the plan and usage counters of an account.
func (c *Client) GetCounters(ctx context.Context, userID uuid.UUID) (quota.Counters, error) {
	query := `
		SELECT plan, podcasts_tracked, ai_analyses_used, charts_accessed
		FROM accounts
		WHERE id = $1
	`
	counters, err := scanCounters(c.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quota.Counters{}, quota.ErrAccountNotFound
		}
		return quota.Counters{}, fmt.Errorf("failed to get counters: %w", err)
	}
	return counters, nil
}

// TryConsume increments the counter of action when it is below the ceiling
// of the account's current plan. The plan lookup, comparison and increment
// run as one UPDATE; the row lock serializes concurrent calls for a user.
func (c *Client) TryConsume(ctx context.Context, userID uuid.UUID, action quota.Action) (quota.Counters, bool, error) {
	column, err := counterColumn(action)
	if err != nil {
		return quota.Counters{}, false, err
	}
	plans, ceilings, err := quota.CeilingsFor(action)
	if err != nil {
		return quota.Counters{}, false, err
	}

	query := fmt.Sprintf(`
		UPDATE accounts a
		SET %[1]s = a.%[1]s + 1, updated_at = NOW()
		FROM (SELECT unnest($2::text[]) AS plan, unnest($3::bigint[]) AS ceiling) c
		WHERE a.id = $1
		  AND c.plan = a.plan
		  AND (c.ceiling IS NULL OR a.%[1]s < c.ceiling)
		RETURNING a.plan, a.podcasts_tracked, a.ai_analyses_used, a.charts_accessed
	`, column)

	counters, err := scanCounters(c.pool.QueryRow(ctx, query, userID, plans, ceilings))
	if err == nil {
		return counters, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return quota.Counters{}, false, fmt.Errorf("failed to consume %s: %w", action, err)
	}

	// No row updated: either the account is missing or the ceiling is reached.
	counters, err = c.GetCounters(ctx, userID)
	if err != nil {
		return quota.Counters{}, false, err
	}
	return counters, false, nil
}

// Release decrements the counter of action, never below zero.
func (c *Client) Release(ctx context.Context, userID uuid.UUID, action quota.Action) error {
	column, err := counterColumn(action)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE accounts
		SET %[1]s = GREATEST(%[1]s - 1, 0), updated_at = NOW()
		WHERE id = $1
	`, column)

	result, err := c.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", action, err)
	}
	if result.RowsAffected() == 0 {
		return quota.ErrAccountNotFound
	}
	return nil
}

// ResetMonthlyCounters zeroes the monthly counters of every paid account and
// returns how many accounts were touched. podcasts_tracked is left alone.
func (c *Client) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	paid := make([]string, 0, 3)
	for _, p := range quota.PaidPlans() {
		paid = append(paid, string(p))
	}

	query := `
		UPDATE accounts
		SET ai_analyses_used = 0, charts_accessed = 0, updated_at = NOW()
		WHERE plan = ANY($1::text[])
	`
	result, err := c.pool.Exec(ctx, query, paid)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly counters: %w", err)
	}
	return result.RowsAffected(), nil
}

// CreateWatermarkIfAbsent stores t under key unless a value exists and
// returns the stored value.
func (c *Client) CreateWatermarkIfAbsent(ctx context.Context, key string, t time.Time) (bool, time.Time, error) {
	insert := `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO NOTHING
		RETURNING value
	`
	var stored time.Time
	err := c.pool.QueryRow(ctx, insert, key, t).Scan(&stored)
	if err == nil {
		return true, stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, time.Time{}, fmt.Errorf("failed to create watermark: %w", err)
	}

	err = c.pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&stored)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}
	return false, stored, nil
}

// SetWatermark upserts the value stored under key.
func (c *Client) SetWatermark(ctx context.Context, key string, t time.Time) error {
	query := `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := c.pool.Exec(ctx, query, key, t); err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}

// SetPlan changes the plan of an account and records its Stripe customer
// when customerID is non-empty. The account is created if missing.
func (c *Client) SetPlan(ctx context.Context, userID uuid.UUID, plan quota.PlanID, customerID string) error {
	if !plan.Known() {
		return fmt.Errorf("unknown plan %q", plan)
	}

	query := `
		INSERT INTO accounts (id, plan, stripe_customer_id, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET plan = EXCLUDED.plan,
		    stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, accounts.stripe_customer_id),
		    updated_at = NOW()
	`
	if _, err := c.pool.Exec(ctx, query, userID, string(plan), customerID); err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	return nil
}

// SetPlanByCustomer changes the plan of the account linked to a Stripe
// customer. Returns quota.ErrAccountNotFound when no account is linked.
func (c *Client) SetPlanByCustomer(ctx context.Context, customerID string, plan quota.PlanID) error {
	if !plan.Known() {
		return fmt.Errorf("unknown plan %q", plan)
	}

	query := `
		UPDATE accounts
		SET plan = $2, updated_at = NOW()
		WHERE stripe_customer_id = $1
	`
	result, err := c.pool.Exec(ctx, query, customerID, string(plan))
	if err != nil {
		return fmt.Errorf("failed to set plan by customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return quota.ErrAccountNotFound
	}
	return nil
}

// SetStripeCustomerID links an account to a Stripe customer.
func (c *Client) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	query := `
		UPDATE accounts
		SET stripe_customer_id = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := c.pool.Exec(ctx, query, userID, customerID)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return quota.ErrAccountNotFound
	}
	return nil
}

// StripeCustomerID returns the Stripe customer linked to an account, or ""
// when none is linked yet.
func (c *Client) StripeCustomerID(ctx context.Context, userID uuid.UUID) (string, error) {
	var customerID *string
	err := c.pool.QueryRow(ctx, `SELECT stripe_customer_id FROM accounts WHERE id = $1`, userID).Scan(&customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", quota.ErrAccountNotFound
		}
		return "", fmt.Errorf("failed to get stripe customer: %w", err)
	}
	if customerID == nil {
		return "", nil
	}
	return *customerID, nil
}
