package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/burka/podpulse/internal/quota"
	"github.com/danielgtaylor/huma/v2"
)

// Standard API errors
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal server error")
)

// ErrorResponse defines the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error code constants
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL"
	CodeLimitExceeded    = "LIMIT_EXCEEDED"
	CodePlanRequired     = "PLAN_REQUIRED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable      = "UNAVAILABLE"
	CodeUpstream         = "UPSTREAM_UNAVAILABLE"
)

// WriteError writes a JSON error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error, statusCode int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: err.Error(),
		Code:  code,
	}

	// Ignore encoding errors - nothing we can do at this point
	_ = json.NewEncoder(w).Encode(response)
}

// WriteJSON writes a JSON response to the HTTP response writer
func WriteJSON(w http.ResponseWriter, data any, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(data)
}

// QuotaError is the response body of a denied metered action.
// Limit denials carry the user's limits and upgradeRequired; store outages
// carry the STORE_UNAVAILABLE code instead.
type QuotaError struct {
	status int

	Message         string  `json:"error"`
	Code            string  `json:"code,omitempty"`
	Limits          *Limits `json:"limits,omitempty"`
	UpgradeRequired bool    `json:"upgradeRequired,omitempty"`
}

// Error implements error.
func (e *QuotaError) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *QuotaError) GetStatus() int { return e.status }

var _ huma.StatusError = (*QuotaError)(nil)

// quotaError maps errors from quota.Guard to HTTP errors:
// limit exceeded → 403, store unavailable → 503, anything else → 500.
func quotaError(err error) error {
	var denied *quota.DeniedError
	switch {
	case errors.As(err, &denied) && denied.HasSnapshot():
		limits := newLimits(denied.Snapshot)
		return &QuotaError{
			status:          http.StatusForbidden,
			Message:         denied.Message,
			Code:            CodeLimitExceeded,
			Limits:          &limits,
			UpgradeRequired: true,
		}
	case errors.Is(err, quota.ErrStoreUnavailable):
		msg := "Usage limits could not be verified. Please try again later."
		if errors.As(err, &denied) {
			msg = denied.Message
		}
		return &QuotaError{
			status:  http.StatusServiceUnavailable,
			Message: msg,
			Code:    CodeStoreUnavailable,
		}
	case errors.Is(err, quota.ErrInvalidAction):
		return huma.Error500InternalServerError("invalid metered action", err)
	default:
		slog.Error("unexpected quota error", "error", err)
		return huma.Error500InternalServerError("internal server error")
	}
}

// planRequiredError rejects a feature the current plan does not include.
func planRequiredError(snap quota.Snapshot, msg string) error {
	limits := newLimits(snap)
	return &QuotaError{
		status:          http.StatusForbidden,
		Message:         msg,
		Code:            CodePlanRequired,
		Limits:          &limits,
		UpgradeRequired: true,
	}
}

// writeQuotaError is quotaError for plain chi handlers.
func writeQuotaError(w http.ResponseWriter, err error) {
	var qe *QuotaError
	if errors.As(quotaError(err), &qe) {
		_ = WriteJSON(w, qe, qe.status)
		return
	}
	WriteError(w, ErrInternal, http.StatusInternalServerError, CodeInternal)
}
