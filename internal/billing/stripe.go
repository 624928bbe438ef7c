// Package billing connects subscription billing on Stripe to account plans.
package billing

import (
	"fmt"

	"github.com/burka/podpulse/internal/quota"
	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Service defines the Stripe operations used by podpulse.
type Service interface {
	// CreateCustomer creates a Stripe customer tagged with the user id.
	CreateCustomer(email, userID string) (string, error)

	// CreateCheckoutSession creates a subscription Checkout session and
	// returns the URL to redirect the user to.
	CreateCheckoutSession(params CheckoutParams) (string, error)

	// CreatePortalSession creates a Customer Portal session and returns its URL.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// GetSubscription retrieves a subscription by id.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// ActiveSubscription returns the customer's active subscription, or nil.
	ActiveSubscription(customerID string) (*stripe.Subscription, error)

	// VerifyWebhookSignature verifies the signature header and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// PlanForPriceID returns the plan sold under priceID, or "" if unknown.
	PlanForPriceID(priceID string) quota.PlanID

	// PriceForPlan returns the price id configured for plan.
	PriceForPlan(plan quota.PlanID) (string, bool)
}

// CheckoutParams contains the input of CreateCheckoutSession.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	Plan       quota.PlanID
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// PriceConfig holds the Stripe price ids of the paid plans.
type PriceConfig struct {
	Starter string `env:"STRIPE_PRICE_STARTER"`
	Pro     string `env:"STRIPE_PRICE_PRO"`
	Agency  string `env:"STRIPE_PRICE_AGENCY"`
}

func (p PriceConfig) byPlan() map[quota.PlanID]string {
	return map[quota.PlanID]string{
		quota.PlanStarter: p.Starter,
		quota.PlanPro:     p.Pro,
		quota.PlanAgency:  p.Agency,
	}
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	planToPrice   map[quota.PlanID]string
	priceToPlan   map[string]quota.PlanID
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey authenticates Stripe API calls and webhookSecret verifies
// incoming webhook signatures. Prices must only name paid plans.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) (Service, error) {
	stripe.Key = secretKey

	planToPrice := make(map[quota.PlanID]string)
	priceToPlan := make(map[string]quota.PlanID)
	for plan, price := range prices.byPlan() {
		if price == "" {
			continue
		}
		if !plan.IsPaid() {
			return nil, fmt.Errorf("price %s configured for unpaid plan %s", price, plan)
		}
		if other, dup := priceToPlan[price]; dup {
			return nil, fmt.Errorf("price %s configured for both %s and %s", price, other, plan)
		}
		planToPrice[plan] = price
		priceToPlan[price] = plan
	}

	return &stripeService{
		webhookSecret: webhookSecret,
		planToPrice:   planToPrice,
		priceToPlan:   priceToPlan,
	}, nil
}

func (s *stripeService) CreateCustomer(email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.AddMetadata("user_id", userID)

	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.AddMetadata("plan", string(p.Plan))
	params.AddMetadata("user_id", p.UserID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) ActiveSubscription(customerID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)

	iter := subscription.List(params)
	if iter.Next() {
		return iter.Subscription(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe list subscriptions: %w", err)
	}
	return nil, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PlanForPriceID(priceID string) quota.PlanID {
	return s.priceToPlan[priceID]
}

func (s *stripeService) PriceForPlan(plan quota.PlanID) (string, bool) {
	price, ok := s.planToPrice[plan]
	return price, ok
}
