package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/models"
)

// AccountFinder loads the account starting a checkout.
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// Service starts checkouts for catalog plans.
type Service struct {
	accounts AccountFinder
	provider CheckoutProvider
}

// NewService constructs a Service.
func NewService(accounts AccountFinder, provider CheckoutProvider) *Service {
	return &Service{accounts: accounts, provider: provider}
}

// Checkout returns the hosted checkout URL for moving accountID to planID.
func (s *Service) Checkout(ctx context.Context, planID, accountID string) (string, error) {
	plan, err := FindPlan(planID)
	if err != nil {
		metrics.RecordCheckout("unknown", "rejected")
		return "", err
	}
	if plan.ID == PlanCustom {
		metrics.RecordCheckout(plan.ID, "rejected")
		return "", ErrCustomPlan
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		metrics.RecordCheckout(plan.ID, "failed")
		return "", fmt.Errorf("load account: %w", err)
	}
	if account.Tier == plan.Tier {
		metrics.RecordCheckout(plan.ID, "rejected")
		return "", ErrAlreadyOnPlan
	}

	redirect, err := s.provider.CreateSession(ctx, CheckoutRequest{
		Plan:              plan.ID,
		ClientReferenceID: account.ID,
	})
	if err != nil {
		metrics.RecordCheckout(plan.ID, "failed")
		logging.FromContext(ctx).Error("create checkout session", "plan", plan.ID, "account_id", account.ID, "error", err)
		if errors.Is(err, ErrCheckoutUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	metrics.RecordCheckout(plan.ID, "created")
	logging.FromContext(ctx).Info("checkout session created", "plan", plan.ID, "account_id", account.ID)
	return redirect, nil
}
