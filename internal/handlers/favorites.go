package handlers

import (
	"errors"
	"net/http"

	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/models"
	"github.com/adstudio/backend/internal/repositories"
)

// FavoriteHandler manages bookmarks.
type FavoriteHandler struct {
	Favorites FavoriteStore
}

// Add handles PUT /api/v1/favorites/{videoId}. Adding twice is not an error.
func (h FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	favorite, created, err := h.Favorites.Add(ctx, p.AccountID, r.PathValue("videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(ctx, w, status, favorite)
}

// Remove handles DELETE /api/v1/favorites/{videoId}. Removing a missing
// favorite is a no-op.
func (h FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if _, err := h.Favorites.Remove(r.Context(), p.AccountID, r.PathValue("videoId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle handles POST /api/v1/favorites/{videoId}/toggle.
func (h FavoriteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	favorited, err := h.Favorites.Toggle(ctx, p.AccountID, r.PathValue("videoId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]bool{"favorited": favorited})
}

// List handles GET /api/v1/favorites?limit=.
func (h FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	limit, err := queryLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	favorites, err := h.Favorites.ListRecent(ctx, p.AccountID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if favorites == nil {
		favorites = []models.Favorite{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"favorites": favorites})
}

func (h FavoriteHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, repositories.ErrNotFound) {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}
	logging.FromContext(ctx).Error("favorite operation failed", "error", err)
	respondError(ctx, w, http.StatusInternalServerError, "unable to update favorites")
}
