package handlers

import (
	"context"
	"time"

	"github.com/adstudio/backend/internal/auth"
	"github.com/adstudio/backend/internal/entitlement"
	"github.com/adstudio/backend/internal/models"
)

// AccountStore captures the persistence operations required by the auth handlers.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// SessionManager issues, refreshes, verifies and revokes session tokens.
type SessionManager interface {
	Issue(ctx context.Context, accountID, email string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	SignOut(ctx context.Context, p auth.Principal, refreshToken string) error
	Verify(token string) (auth.Principal, error)
}

// VideoCatalog serves the video library.
type VideoCatalog interface {
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, error)
	Get(ctx context.Context, id string) (models.Video, error)
	Categories() []models.Category
}

// DownloadLedger authorizes and records downloads.
type DownloadLedger interface {
	AuthorizeAndRecordDownload(ctx context.Context, accountID, videoID string) (entitlement.Receipt, error)
}

// URLSigner turns a stored asset location into a time-limited download link.
type URLSigner interface {
	SignURL(ctx context.Context, location string, ttl time.Duration) (string, error)
}

// FavoriteStore captures bookmark persistence.
type FavoriteStore interface {
	Add(ctx context.Context, accountID, videoID string) (models.Favorite, bool, error)
	Remove(ctx context.Context, accountID, videoID string) (bool, error)
	Toggle(ctx context.Context, accountID, videoID string) (bool, error)
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Favorite, error)
}

// DownloadStore reads the download history.
type DownloadStore interface {
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Download, error)
}

// OrderStore persists custom orders.
type OrderStore interface {
	Create(ctx context.Context, order models.CustomOrder) error
	ListForAccount(ctx context.Context, accountID string, limit int) ([]models.CustomOrder, error)
}

// OrderPublisher forwards submitted orders to production.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, order models.CustomOrder) error
}

// CheckoutService starts hosted checkouts.
type CheckoutService interface {
	Checkout(ctx context.Context, planID, accountID string) (string, error)
}
