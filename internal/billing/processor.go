package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/burka/podpulse/internal/metrics"
	"github.com/burka/podpulse/internal/quota"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

var (
	// ErrPlanNotPurchasable means no price is configured for the plan.
	ErrPlanNotPurchasable = errors.New("plan cannot be purchased")
	// ErrNoCustomer means the account has never started a checkout.
	ErrNoCustomer = errors.New("no billing customer for account")
)

// AccountStore is the part of the counter store that billing writes to.
// Plans live next to the counters so enforcement sees upgrades immediately.
type AccountStore interface {
	EnsureAccount(ctx context.Context, userID uuid.UUID) error
	StripeCustomerID(ctx context.Context, userID uuid.UUID) (string, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	SetPlan(ctx context.Context, userID uuid.UUID, plan quota.PlanID, customerID string) error
	SetPlanByCustomer(ctx context.Context, customerID string, plan quota.PlanID) error
}

// Processor runs the billing flows: checkout, portal, subscription sync and
// webhook event handling.
type Processor struct {
	stripe Service
	store  AccountStore
}

// NewProcessor creates a Processor.
func NewProcessor(svc Service, store AccountStore) *Processor {
	return &Processor{stripe: svc, store: store}
}

// Checkout starts a subscription checkout for plan and returns its URL.
// A Stripe customer is created and linked on first use.
func (p *Processor) Checkout(ctx context.Context, userID uuid.UUID, email string, plan quota.PlanID, successURL, cancelURL string) (string, error) {
	priceID, ok := p.stripe.PriceForPlan(plan)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPlanNotPurchasable, plan)
	}

	customerID, err := p.customerFor(ctx, userID, email)
	if err != nil {
		return "", err
	}

	return p.stripe.CreateCheckoutSession(CheckoutParams{
		CustomerID: customerID,
		UserID:     userID.String(),
		Plan:       plan,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
}

func (p *Processor) customerFor(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	if err := p.store.EnsureAccount(ctx, userID); err != nil {
		return "", err
	}
	customerID, err := p.store.StripeCustomerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	customerID, err = p.stripe.CreateCustomer(email, userID.String())
	if err != nil {
		return "", err
	}
	if err := p.store.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return "", err
	}
	slog.Info("stripe customer created", "user_id", userID, "customer_id", customerID)
	return customerID, nil
}

// Portal returns a Customer Portal URL for the account.
func (p *Processor) Portal(ctx context.Context, userID uuid.UUID, returnURL string) (string, error) {
	customerID, err := p.store.StripeCustomerID(ctx, userID)
	if err != nil && !errors.Is(err, quota.ErrAccountNotFound) {
		return "", err
	}
	if customerID == "" {
		return "", ErrNoCustomer
	}
	return p.stripe.CreatePortalSession(customerID, returnURL)
}

// Sync reconciles the account plan with the customer's active subscription
// and returns the resulting plan. Without an active subscription the account
// falls back to free.
func (p *Processor) Sync(ctx context.Context, userID uuid.UUID) (quota.PlanID, error) {
	customerID, err := p.store.StripeCustomerID(ctx, userID)
	if err != nil && !errors.Is(err, quota.ErrAccountNotFound) {
		return "", err
	}
	if customerID == "" {
		return "", ErrNoCustomer
	}

	sub, err := p.stripe.ActiveSubscription(customerID)
	if err != nil {
		return "", err
	}

	plan := quota.PlanFree
	if sub != nil {
		if resolved := p.stripe.PlanForPriceID(firstPriceID(sub)); resolved != "" {
			plan = resolved
		}
	}

	if err := p.store.SetPlan(ctx, userID, plan, customerID); err != nil {
		return "", err
	}
	metrics.PlanChangesTotal.WithLabelValues(string(plan)).Inc()
	slog.Info("subscription synced", "user_id", userID, "plan", plan)
	return plan, nil
}

// VerifyEvent checks the webhook signature and decodes the event.
func (p *Processor) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	return p.stripe.VerifyWebhookSignature(payload, signature)
}

// HandleEvent applies the plan transition carried by a webhook event.
// Unhandled event types are acknowledged and ignored.
func (p *Processor) HandleEvent(ctx context.Context, event stripe.Event) error {
	var err error
	switch event.Type {
	case "checkout.session.completed":
		err = p.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = p.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		err = p.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err = decode(event, &inv); err == nil {
			slog.Warn("invoice payment failed", "customer_id", customerID(inv.Customer), "invoice_id", inv.ID)
		}
	default:
		slog.Debug("unhandled stripe event", "type", event.Type, "id", event.ID)
		metrics.BillingWebhookEventsTotal.WithLabelValues(string(event.Type), "ignored").Inc()
		return nil
	}

	result := "processed"
	if err != nil {
		result = "error"
	}
	metrics.BillingWebhookEventsTotal.WithLabelValues(string(event.Type), result).Inc()
	return err
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := decode(event, &sess); err != nil {
		return err
	}
	if sess.Mode != stripe.CheckoutSessionModeSubscription {
		return nil
	}

	plan := quota.PlanID(sess.Metadata["plan"])
	if !plan.IsPaid() && sess.Subscription != nil && sess.Subscription.ID != "" {
		sub, err := p.stripe.GetSubscription(sess.Subscription.ID)
		if err != nil {
			return err
		}
		plan = p.stripe.PlanForPriceID(firstPriceID(sub))
	}
	if !plan.IsPaid() {
		return fmt.Errorf("checkout session %s has no purchasable plan", sess.ID)
	}

	customer := customerID(sess.Customer)
	if userID, err := uuid.Parse(sess.ClientReferenceID); err == nil {
		if err := p.store.SetPlan(ctx, userID, plan, customer); err != nil {
			return err
		}
	} else if err := p.store.SetPlanByCustomer(ctx, customer, plan); err != nil {
		return err
	}

	metrics.PlanChangesTotal.WithLabelValues(string(plan)).Inc()
	slog.Info("checkout completed", "customer_id", customer, "plan", plan)
	return nil
}

func (p *Processor) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := decode(event, &sub); err != nil {
		return err
	}
	customer := customerID(sub.Customer)

	var plan quota.PlanID
	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		plan = p.stripe.PlanForPriceID(firstPriceID(&sub))
		if plan == "" {
			slog.Warn("subscription with unknown price", "customer_id", customer, "price_id", firstPriceID(&sub))
			return nil
		}
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid:
		plan = quota.PlanFree
	default:
		slog.Info("subscription status unchanged plan", "customer_id", customer, "status", sub.Status)
		return nil
	}

	return p.applyCustomerPlan(ctx, customer, plan, string(sub.Status))
}

func (p *Processor) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := decode(event, &sub); err != nil {
		return err
	}
	return p.applyCustomerPlan(ctx, customerID(sub.Customer), quota.PlanFree, "deleted")
}

func (p *Processor) applyCustomerPlan(ctx context.Context, customer string, plan quota.PlanID, reason string) error {
	err := p.store.SetPlanByCustomer(ctx, customer, plan)
	if errors.Is(err, quota.ErrAccountNotFound) {
		// Events for customers created outside podpulse.
		slog.Warn("stripe customer not linked to any account", "customer_id", customer)
		return nil
	}
	if err != nil {
		return err
	}
	metrics.PlanChangesTotal.WithLabelValues(string(plan)).Inc()
	slog.Info("plan changed", "customer_id", customer, "plan", plan, "reason", reason)
	return nil
}

func decode(event stripe.Event, v any) error {
	if event.Data == nil {
		return fmt.Errorf("event %s has no data", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("decode %s event: %w", event.Type, err)
	}
	return nil
}

func firstPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil {
			return item.Price.ID
		}
	}
	return ""
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
