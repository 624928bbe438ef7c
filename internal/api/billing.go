package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/burka/podpulse/internal/billing"
	"github.com/burka/podpulse/internal/quota"
	"github.com/danielgtaylor/huma/v2"
)

// maxWebhookBody bounds Stripe webhook payloads.
const maxWebhookBody = 65536

// BillingService handles Stripe checkout, the customer portal and
// subscription sync.
type BillingService struct {
	processor *billing.Processor
	returnURL string
}

// NewBillingService creates a new BillingService. returnURL is the default
// page Stripe redirects back to.
func NewBillingService(processor *billing.Processor, returnURL string) *BillingService {
	return &BillingService{processor: processor, returnURL: returnURL}
}

// Checkout handles POST /v1/billing/checkout
func (s *BillingService) Checkout(ctx context.Context, input *CheckoutInput) (*RedirectOutput, error) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	plan := quota.PlanID(input.Body.PlanID)
	if !plan.IsPaid() {
		return nil, huma.Error400BadRequest("invalid plan")
	}

	base := s.returnTo(input.Body.ReturnURL)
	checkoutURL, err := s.processor.Checkout(ctx, p.UserID, p.Email, plan,
		withQuery(base, "success", "true"),
		withQuery(base, "canceled", "true"),
	)
	if err != nil {
		if errors.Is(err, billing.ErrPlanNotPurchasable) {
			return nil, huma.Error400BadRequest("plan is not available for purchase")
		}
		return nil, huma.Error500InternalServerError("failed to create checkout session", err)
	}

	return &RedirectOutput{Body: RedirectResponse{URL: checkoutURL}}, nil
}

// Portal handles POST /v1/billing/portal
func (s *BillingService) Portal(ctx context.Context, input *PortalInput) (*RedirectOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	var requested string
	if input.Body != nil {
		requested = input.Body.ReturnURL
	}

	portalURL, err := s.processor.Portal(ctx, userID, s.returnTo(requested))
	if err != nil {
		if errors.Is(err, billing.ErrNoCustomer) {
			return nil, huma.Error400BadRequest("no billing account found")
		}
		return nil, huma.Error500InternalServerError("failed to create portal session", err)
	}

	return &RedirectOutput{Body: RedirectResponse{URL: portalURL}}, nil
}

// Sync handles POST /v1/billing/sync
// Reconciles the plan with Stripe when a webhook was missed.
func (s *BillingService) Sync(ctx context.Context, input *SyncInput) (*SyncOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	plan, err := s.processor.Sync(ctx, userID)
	if err != nil {
		if errors.Is(err, billing.ErrNoCustomer) {
			return nil, huma.Error400BadRequest("no billing account found")
		}
		return nil, huma.Error500InternalServerError("failed to sync subscription", err)
	}

	return &SyncOutput{Body: SyncResponse{Plan: string(plan)}}, nil
}

// returnTo picks the requested return URL when it is absolute, else the default.
func (s *BillingService) returnTo(requested string) string {
	if requested == "" {
		return s.returnURL
	}
	u, err := url.Parse(requested)
	if err != nil || !u.IsAbs() {
		return s.returnURL
	}
	return requested
}

func withQuery(base, key, value string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// StripeWebhook handles POST /webhooks/stripe. The signature is verified
// before any event is applied; processing errors return 500 so Stripe retries.
func StripeWebhook(processor *billing.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			WriteError(w, fmt.Errorf("%w: unreadable body", ErrBadRequest), http.StatusBadRequest, CodeBadRequest)
			return
		}

		event, err := processor.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			slog.Warn("stripe webhook rejected", "error", err)
			_ = WriteJSON(w, ErrorResponse{Error: "Invalid signature", Code: CodeBadRequest}, http.StatusBadRequest)
			return
		}

		if err := processor.HandleEvent(r.Context(), event); err != nil {
			slog.Error("stripe webhook processing failed", "type", event.Type, "id", event.ID, "error", err)
			_ = WriteJSON(w, ErrorResponse{Error: "Webhook handler failed", Code: CodeInternal}, http.StatusInternalServerError)
			return
		}

		_ = WriteJSON(w, WebhookResponse{Received: true}, http.StatusOK)
	}
}
