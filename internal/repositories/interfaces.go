package repositories

import (
	"context"

	"github.com/adstudio/backend/internal/auth"
	"github.com/adstudio/backend/internal/models"
)

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// VideoRepository exposes data access for catalog videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, error)
}

// FavoriteRepository exposes account bookmarks.
type FavoriteRepository interface {
	Add(ctx context.Context, accountID, videoID string) (models.Favorite, bool, error)
	Remove(ctx context.Context, accountID, videoID string) (bool, error)
	Toggle(ctx context.Context, accountID, videoID string) (bool, error)
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Favorite, error)
}

// DownloadRepository reads the download log.
type DownloadRepository interface {
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Download, error)
}

// OrderRepository persists custom orders.
type OrderRepository interface {
	Create(ctx context.Context, order models.CustomOrder) error
	ListForAccount(ctx context.Context, accountID string, limit int) ([]models.CustomOrder, error)
}

var (
	_ AccountRepository  = (*PostgresAccountRepository)(nil)
	_ VideoRepository    = (*PostgresVideoRepository)(nil)
	_ FavoriteRepository = (*PostgresFavoriteRepository)(nil)
	_ DownloadRepository = (*PostgresDownloadRepository)(nil)
	_ OrderRepository    = (*PostgresOrderRepository)(nil)
	_ auth.SessionStore  = (*PostgresSessionStore)(nil)
)
