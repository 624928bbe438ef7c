package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/burka/podpulse/internal/billing"
	"github.com/burka/podpulse/internal/quota"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testWebhookSecret = "whsec_api_test"

func withBilling(t *testing.T) func(*Config, *Dependencies) {
	return func(_ *Config, d *Dependencies) {
		svc, err := billing.NewStripeService("sk_test_dummy", testWebhookSecret, billing.PriceConfig{
			Starter: "price_starter",
			Pro:     "price_pro",
			Agency:  "price_agency",
		})
		require.NoError(t, err)
		d.Billing = billing.NewProcessor(svc, d.Store.(billing.AccountStore))
	}
}

func signedWebhook(t *testing.T, payload string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t, withBilling(t))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid signature", decode[ErrorResponse](t, w).Error)
}

func TestStripeWebhook_SubscriptionDeletedDowngrades(t *testing.T) {
	env := newTestEnv(t, withBilling(t))
	userID := uuid.New()
	require.NoError(t, env.store.SetPlan(context.Background(), userID, quota.PlanPro, "cus_123"))

	payload := fmt.Sprintf(`{"id":"evt_2","object":"event","type":"customer.subscription.deleted","api_version":"2020-08-27",`+
		`"data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_123","status":"canceled"}},"created":%d}`, time.Now().Unix())

	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, signedWebhook(t, payload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[WebhookResponse](t, w).Received)

	c, ok := env.store.Account(userID)
	require.True(t, ok)
	assert.Equal(t, quota.PlanFree, c.Plan)
}

func TestStripeWebhook_ProcessingFailureAsksForRetry(t *testing.T) {
	env := newTestEnv(t, withBilling(t))
	require.NoError(t, env.store.SetPlan(context.Background(), uuid.New(), quota.PlanPro, "cus_9"))
	env.store.Fail(errBoom)

	payload := `{"id":"evt_3","object":"event","type":"customer.subscription.deleted","api_version":"2020-08-27",` +
		`"data":{"object":{"id":"sub_9","object":"subscription","customer":"cus_9","status":"canceled"}}}`

	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, signedWebhook(t, payload))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStripeWebhook_NotMountedWithoutBilling(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/webhooks/stripe", "", nil)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestBillingPortal_NoCustomer(t *testing.T) {
	env := newTestEnv(t, withBilling(t))

	w := env.do(t, http.MethodPost, "/v1/billing/portal", tokenFor(uuid.New()), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestBillingSync_NoCustomer(t *testing.T) {
	env := newTestEnv(t, withBilling(t))

	w := env.do(t, http.MethodPost, "/v1/billing/sync", tokenFor(uuid.New()), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestBillingCheckout_RejectsFreePlan(t *testing.T) {
	env := newTestEnv(t, withBilling(t))

	w := env.do(t, http.MethodPost, "/v1/billing/checkout", tokenFor(uuid.New()), map[string]string{"planId": "free"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBillingRoutes_AbsentWithoutBilling(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/billing/portal", tokenFor(uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReturnTo(t *testing.T) {
	s := NewBillingService(nil, "https://app.test/billing")

	assert.Equal(t, "https://app.test/billing", s.returnTo(""))
	assert.Equal(t, "https://app.test/billing", s.returnTo("/relative"))
	assert.Equal(t, "https://other.test/x", s.returnTo("https://other.test/x"))
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "https://app.test/billing?success=true", withQuery("https://app.test/billing", "success", "true"))
	assert.Equal(t, "https://app.test/billing?a=1&canceled=true", withQuery("https://app.test/billing?a=1", "canceled", "true"))
}
