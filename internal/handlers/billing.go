package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/adstudio/backend/internal/billing"
	"github.com/adstudio/backend/internal/logging"
)

// BillingHandler exposes plans and starts checkouts.
type BillingHandler struct {
	Checkout CheckoutService
}

// Plans handles GET /api/v1/plans.
func (h BillingHandler) Plans(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"plans": billing.Plans()})
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// StartCheckout handles POST /api/v1/checkout.
func (h BillingHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Plan) == "" {
		respondError(ctx, w, http.StatusBadRequest, "plan is required")
		return
	}

	redirect, err := h.Checkout.Checkout(ctx, req.Plan, p.AccountID)
	switch {
	case err == nil:
		respondJSON(ctx, w, http.StatusOK, map[string]string{"url": redirect})
	case errors.Is(err, billing.ErrUnknownPlan):
		respondError(ctx, w, http.StatusBadRequest, "unknown plan")
	case errors.Is(err, billing.ErrCustomPlan):
		respondError(ctx, w, http.StatusBadRequest, "the custom plan is ordered through the custom order form")
	case errors.Is(err, billing.ErrAlreadyOnPlan):
		respondError(ctx, w, http.StatusConflict, "you are already on this plan")
	case errors.Is(err, billing.ErrCheckoutUnavailable):
		respondError(ctx, w, http.StatusBadGateway, "checkout is temporarily unavailable, please try again")
	default:
		logging.FromContext(ctx).Error("checkout failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to start checkout")
	}
}
