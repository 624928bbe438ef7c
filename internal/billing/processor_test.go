package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/burka/podpulse/internal/billing"
	"github.com/burka/podpulse/internal/quota"
	"github.com/burka/podpulse/internal/quota/quotatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func event(t *testing.T, typ string, obj any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_" + typ,
		Type: stripe.EventType(typ),
		Data: &stripe.EventData{Raw: raw},
	}
}

func plan(t *testing.T, store *quotatest.Store, userID uuid.UUID) quota.PlanID {
	t.Helper()
	c, ok := store.Account(userID)
	require.True(t, ok)
	return c.Plan
}

func TestCheckout_CreatesCustomerOnce(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	svc := newFakeStripe()
	p := billing.NewProcessor(svc, store)
	userID := uuid.New()

	url, err := p.Checkout(ctx, userID, "host@example.com", quota.PlanPro, "https://app/billing?success=true", "https://app/billing?canceled=true")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/price_pro", url)

	_, err = p.Checkout(ctx, userID, "host@example.com", quota.PlanAgency, "s", "c")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.customers)
	require.Len(t, svc.checkouts, 2)
	assert.Equal(t, svc.checkouts[0].CustomerID, svc.checkouts[1].CustomerID)
	assert.Equal(t, userID.String(), svc.checkouts[0].UserID)
	assert.Equal(t, quota.PlanAgency, svc.checkouts[1].Plan)

	customer, err := store.StripeCustomerID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, svc.checkouts[0].CustomerID, customer)
	assert.Equal(t, quota.PlanFree, plan(t, store, userID), "checkout alone does not upgrade")
}

func TestCheckout_RejectsUnpurchasablePlan(t *testing.T) {
	p := billing.NewProcessor(newFakeStripe(), quotatest.NewStore())

	_, err := p.Checkout(context.Background(), uuid.New(), "a@b.c", quota.PlanFree, "s", "c")
	assert.ErrorIs(t, err, billing.ErrPlanNotPurchasable)
}

func TestCheckout_StripeFailure(t *testing.T) {
	svc := newFakeStripe()
	svc.err = errors.New("stripe down")
	p := billing.NewProcessor(svc, quotatest.NewStore())

	_, err := p.Checkout(context.Background(), uuid.New(), "a@b.c", quota.PlanStarter, "s", "c")
	assert.Error(t, err)
}

func TestPortal(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	p := billing.NewProcessor(newFakeStripe(), store)
	userID := uuid.New()

	_, err := p.Portal(ctx, userID, "https://app")
	assert.ErrorIs(t, err, billing.ErrNoCustomer)

	require.NoError(t, store.SetPlan(ctx, userID, quota.PlanPro, "cus_1"))
	url, err := p.Portal(ctx, userID, "https://app")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/cus_1", url)
}

func TestHandleEvent_CheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	p := billing.NewProcessor(newFakeStripe(), store)
	userID := uuid.New()

	sess := stripe.CheckoutSession{
		ID:                "cs_1",
		Mode:              stripe.CheckoutSessionModeSubscription,
		ClientReferenceID: userID.String(),
		Customer:          &stripe.Customer{ID: "cus_1"},
		Metadata:          map[string]string{"plan": "starter"},
	}
	require.NoError(t, p.HandleEvent(ctx, event(t, "checkout.session.completed", sess)))
	assert.Equal(t, quota.PlanStarter, plan(t, store, userID))

	customer, err := store.StripeCustomerID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", customer)
}

func TestHandleEvent_CheckoutCompletedResolvesSubscriptionPrice(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	svc := newFakeStripe()
	svc.subscriptions["sub_1"] = subscriptionWithPrice("sub_1", "cus_1", "price_agency", stripe.SubscriptionStatusActive)
	p := billing.NewProcessor(svc, store)
	userID := uuid.New()

	sess := stripe.CheckoutSession{
		ID:                "cs_1",
		Mode:              stripe.CheckoutSessionModeSubscription,
		ClientReferenceID: userID.String(),
		Customer:          &stripe.Customer{ID: "cus_1"},
		Subscription:      &stripe.Subscription{ID: "sub_1"},
	}
	require.NoError(t, p.HandleEvent(ctx, event(t, "checkout.session.completed", sess)))
	assert.Equal(t, quota.PlanAgency, plan(t, store, userID))
}

func TestHandleEvent_CheckoutPaymentModeIgnored(t *testing.T) {
	store := quotatest.NewStore()
	p := billing.NewProcessor(newFakeStripe(), store)
	userID := uuid.New()

	sess := stripe.CheckoutSession{
		Mode:              stripe.CheckoutSessionModePayment,
		ClientReferenceID: userID.String(),
	}
	require.NoError(t, p.HandleEvent(context.Background(), event(t, "checkout.session.completed", sess)))
	_, ok := store.Account(userID)
	assert.False(t, ok)
}

func TestHandleEvent_SubscriptionTransitions(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		status stripe.SubscriptionStatus
		price  string
		want   quota.PlanID
	}{
		{"active upgrade", "customer.subscription.updated", stripe.SubscriptionStatusActive, "price_agency", quota.PlanAgency},
		{"trialing", "customer.subscription.updated", stripe.SubscriptionStatusTrialing, "price_starter", quota.PlanStarter},
		{"canceled", "customer.subscription.updated", stripe.SubscriptionStatusCanceled, "price_pro", quota.PlanFree},
		{"unpaid", "customer.subscription.updated", stripe.SubscriptionStatusUnpaid, "price_pro", quota.PlanFree},
		{"past due keeps plan", "customer.subscription.updated", stripe.SubscriptionStatusPastDue, "price_agency", quota.PlanPro},
		{"unknown price keeps plan", "customer.subscription.updated", stripe.SubscriptionStatusActive, "price_other", quota.PlanPro},
		{"deleted", "customer.subscription.deleted", stripe.SubscriptionStatusCanceled, "price_pro", quota.PlanFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := quotatest.NewStore()
			p := billing.NewProcessor(newFakeStripe(), store)
			userID := uuid.New()
			require.NoError(t, store.SetPlan(ctx, userID, quota.PlanPro, "cus_1"))

			sub := subscriptionWithPrice("sub_1", "cus_1", tt.price, tt.status)
			require.NoError(t, p.HandleEvent(ctx, event(t, tt.event, sub)))
			assert.Equal(t, tt.want, plan(t, store, userID))
		})
	}
}

func TestHandleEvent_UnlinkedCustomerAcknowledged(t *testing.T) {
	p := billing.NewProcessor(newFakeStripe(), quotatest.NewStore())
	sub := subscriptionWithPrice("sub_1", "cus_unknown", "price_pro", stripe.SubscriptionStatusActive)

	assert.NoError(t, p.HandleEvent(context.Background(), event(t, "customer.subscription.updated", sub)))
}

func TestHandleEvent_StoreFailureSurfaces(t *testing.T) {
	store := quotatest.NewStore()
	store.Fail(quota.ErrStoreUnavailable)
	p := billing.NewProcessor(newFakeStripe(), store)
	sub := subscriptionWithPrice("sub_1", "cus_1", "price_pro", stripe.SubscriptionStatusActive)

	err := p.HandleEvent(context.Background(), event(t, "customer.subscription.updated", sub))
	assert.ErrorIs(t, err, quota.ErrStoreUnavailable)
}

func TestHandleEvent_IgnoresOtherTypes(t *testing.T) {
	p := billing.NewProcessor(newFakeStripe(), quotatest.NewStore())

	assert.NoError(t, p.HandleEvent(context.Background(), stripe.Event{Type: "charge.refunded"}))
	assert.NoError(t, p.HandleEvent(context.Background(), event(t, "invoice.payment_failed", stripe.Invoice{ID: "in_1"})))
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	store := quotatest.NewStore()
	svc := newFakeStripe()
	p := billing.NewProcessor(svc, store)
	userID := uuid.New()

	_, err := p.Sync(ctx, userID)
	assert.ErrorIs(t, err, billing.ErrNoCustomer)

	require.NoError(t, store.SetPlan(ctx, userID, quota.PlanFree, "cus_1"))
	svc.active = subscriptionWithPrice("sub_1", "cus_1", "price_pro", stripe.SubscriptionStatusActive)

	got, err := p.Sync(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanPro, got)
	assert.Equal(t, quota.PlanPro, plan(t, store, userID))

	svc.active = nil
	got, err = p.Sync(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, got)
}
