package handlers

import (
	"errors"
	"net/http"

	"github.com/adstudio/backend/internal/catalog"
	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/models"
)

// VideoHandler serves the public catalog.
type VideoHandler struct {
	Catalog VideoCatalog
}

// List handles GET /api/v1/videos?category=&q=&limit=.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter, err := catalog.ParseFilter(q.Get("category"), q.Get("q"), q.Get("limit"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	videos, err := h.Catalog.List(ctx, filter)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidFilter) {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(ctx).Error("list videos failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load videos")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

// Get handles GET /api/v1/videos/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.Catalog.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		logging.FromContext(ctx).Error("load video failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, video)
}

// Categories handles GET /api/v1/categories.
func (h VideoHandler) Categories(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"categories": append([]string{catalog.AllCategories}, categoryNames(h.Catalog.Categories())...),
	})
}

func categoryNames(categories []models.Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}
