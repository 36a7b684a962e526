package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/adstudio/backend/internal/entitlement"
	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/models"
	"github.com/adstudio/backend/internal/repositories"
)

// accountView is the public shape of an account.
type accountView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	entitlement.Summary
}

func newAccountView(account models.Account, now time.Time) *accountView {
	return &accountView{
		ID:        account.ID,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
		Summary:   entitlement.Summarize(account, now),
	}
}

// AccountHandler exposes the signed-in account.
type AccountHandler struct {
	Accounts AccountStore
	NowFunc  func() time.Time
}

// Get handles GET /api/v1/account.
func (h AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	account, err := h.Accounts.FindByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		logging.FromContext(ctx).Error("load account failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load account")
		return
	}

	respondJSON(ctx, w, http.StatusOK, newAccountView(account, nowOr(h.NowFunc)))
}

func nowOr(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now().UTC()
}
