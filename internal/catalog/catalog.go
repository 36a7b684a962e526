// Package catalog serves the video library: filtered listings, cached
// lookups by id and bulk imports from a manifest.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/models"
	"github.com/adstudio/backend/internal/repositories"
)

const (
	// DefaultLimit applies when a listing does not specify a limit.
	DefaultLimit = 50
	// MaxLimit caps every listing.
	MaxLimit = 200
	// AllCategories is the pseudo category accepted by listings.
	AllCategories = "all"
)

var (
	// ErrNotFound indicates the video does not exist.
	ErrNotFound = repositories.ErrNotFound
	// ErrInvalidFilter indicates a listing filter could not be parsed.
	ErrInvalidFilter = errors.New("invalid catalog filter")
)

// Repository is the persistence the catalog reads from and imports into.
type Repository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, error)
}

// Catalog serves videos from a repository through a lookup cache.
type Catalog struct {
	repo  Repository
	cache Cache
}

// New constructs a Catalog. A nil cache disables caching.
func New(repo Repository, cache Cache) *Catalog {
	if cache == nil {
		cache = noopCache{}
	}
	return &Catalog{repo: repo, cache: cache}
}

// ParseFilter builds a filter from raw query parameters.
func ParseFilter(category, query, limit string) (models.VideoFilter, error) {
	var filter models.VideoFilter

	category = strings.TrimSpace(strings.ToLower(category))
	if category != "" && category != AllCategories {
		parsed, err := models.ParseCategory(category)
		if err != nil {
			return models.VideoFilter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		filter.Category = parsed
	}

	filter.Query = strings.TrimSpace(query)

	if limit = strings.TrimSpace(limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return models.VideoFilter{}, fmt.Errorf("%w: limit must be a non-negative integer", ErrInvalidFilter)
		}
		filter.Limit = n
	}

	return filter, nil
}

// NormalizeLimit applies DefaultLimit and MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// List returns videos matching filter, newest first.
func (c *Catalog) List(ctx context.Context, filter models.VideoFilter) ([]models.Video, error) {
	if string(filter.Category) == AllCategories {
		filter.Category = ""
	}
	if filter.Category != "" {
		if _, err := models.ParseCategory(string(filter.Category)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	}
	filter.Limit = NormalizeLimit(filter.Limit)

	videos, err := c.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// Get returns a single video or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (models.Video, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Video{}, ErrNotFound
	}

	logger := logging.FromContext(ctx)
	if video, ok, err := c.cache.Get(ctx, id); err != nil {
		logger.Warn("catalog cache read failed", slog.String("video_id", id), slog.Any("error", err))
	} else if ok {
		return video, nil
	}

	video, err := c.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find video: %w", err)
	}

	if err := c.cache.Set(ctx, video); err != nil {
		logger.Warn("catalog cache write failed", slog.String("video_id", id), slog.Any("error", err))
	}
	return video, nil
}

// Find reports whether the video exists, returning it when it does.
func (c *Catalog) Find(ctx context.Context, id string) (models.Video, bool, error) {
	video, err := c.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return models.Video{}, false, nil
	}
	if err != nil {
		return models.Video{}, false, err
	}
	return video, true, nil
}

// Add stores a new video and primes the cache.
func (c *Catalog) Add(ctx context.Context, video models.Video) error {
	if err := c.repo.Create(ctx, video); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, video); err != nil {
		logging.FromContext(ctx).Warn("catalog cache write failed", slog.String("video_id", video.ID), slog.Any("error", err))
	}
	return nil
}

// Categories lists the catalog categories in display order.
func (c *Catalog) Categories() []models.Category {
	out := make([]models.Category, len(models.Categories))
	copy(out, models.Categories)
	return out
}
