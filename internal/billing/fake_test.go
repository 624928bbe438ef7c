package billing_test

import (
	"errors"
	"sync"

	"github.com/burka/podpulse/internal/billing"
	"github.com/burka/podpulse/internal/quota"
	"github.com/stripe/stripe-go/v79"
)

// fakeStripe is an in-memory billing.Service.
type fakeStripe struct {
	mu            sync.Mutex
	customers     int
	checkouts     []billing.CheckoutParams
	subscriptions map[string]*stripe.Subscription
	active        *stripe.Subscription
	err           error
}

var prices = map[quota.PlanID]string{
	quota.PlanStarter: "price_starter",
	quota.PlanPro:     "price_pro",
	quota.PlanAgency:  "price_agency",
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{subscriptions: make(map[string]*stripe.Subscription)}
}

func (f *fakeStripe) CreateCustomer(email, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.customers++
	return "cus_" + userID[:8], nil
}

func (f *fakeStripe) CreateCheckoutSession(p billing.CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, p)
	return "https://checkout.stripe.test/" + p.PriceID, nil
}

func (f *fakeStripe) CreatePortalSession(customerID, returnURL string) (string, error) {
	return "https://billing.stripe.test/" + customerID, nil
}

func (f *fakeStripe) GetSubscription(id string) (*stripe.Subscription, error) {
	sub, ok := f.subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func (f *fakeStripe) ActiveSubscription(customerID string) (*stripe.Subscription, error) {
	return f.active, f.err
}

func (f *fakeStripe) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}

func (f *fakeStripe) PlanForPriceID(priceID string) quota.PlanID {
	for plan, id := range prices {
		if id == priceID {
			return plan
		}
	}
	return ""
}

func (f *fakeStripe) PriceForPlan(plan quota.PlanID) (string, bool) {
	id, ok := prices[plan]
	return id, ok
}

func subscriptionWithPrice(id, customer, priceID string, status stripe.SubscriptionStatus) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Customer: &stripe.Customer{ID: customer},
		Status:   status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: priceID}}},
		},
	}
}
