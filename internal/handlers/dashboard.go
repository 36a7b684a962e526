package handlers

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/models"
	"github.com/adstudio/backend/internal/repositories"
)

const dashboardListLimit = 10

// DashboardHandler renders the account overview.
type DashboardHandler struct {
	Accounts  AccountStore
	Downloads DownloadStore
	Favorites FavoriteStore
	NowFunc   func() time.Time
}

type dashboardResponse struct {
	Account   *accountView      `json:"account"`
	Downloads []models.Download `json:"recentDownloads"`
	Favorites []models.Favorite `json:"recentFavorites"`
}

// Get handles GET /api/v1/dashboard.
func (h DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var (
		account   models.Account
		downloads []models.Download
		favorites []models.Favorite
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = h.Accounts.FindByID(gctx, p.AccountID)
		return err
	})
	g.Go(func() error {
		var err error
		downloads, err = h.Downloads.ListRecent(gctx, p.AccountID, dashboardListLimit)
		return err
	})
	g.Go(func() error {
		var err error
		favorites, err = h.Favorites.ListRecent(gctx, p.AccountID, dashboardListLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		logging.FromContext(ctx).Error("load dashboard failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load dashboard")
		return
	}

	if downloads == nil {
		downloads = []models.Download{}
	}
	if favorites == nil {
		favorites = []models.Favorite{}
	}
	respondJSON(ctx, w, http.StatusOK, dashboardResponse{
		Account:   newAccountView(account, nowOr(h.NowFunc)),
		Downloads: downloads,
		Favorites: favorites,
	})
}
