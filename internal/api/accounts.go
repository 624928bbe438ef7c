package api

import (
	"context"

	"github.com/burka/podpulse/internal/quota"
	"github.com/danielgtaylor/huma/v2"
)

// AccountService serves the user's plan and usage.
type AccountService struct {
	guard *quota.Guard
}

// NewAccountService creates a new AccountService.
func NewAccountService(guard *quota.Guard) *AccountService {
	return &AccountService{guard: guard}
}

// GetLimits handles GET /v1/account/limits
// Returns the plan, counters, ceilings and meters. The account is
// provisioned on first access.
func (a *AccountService) GetLimits(ctx context.Context, input *GetLimitsInput) (*GetLimitsOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	snap, err := a.guard.Limits(ctx, userID)
	if err != nil {
		return nil, quotaError(err)
	}

	return &GetLimitsOutput{Body: newLimitsResponse(snap)}, nil
}
