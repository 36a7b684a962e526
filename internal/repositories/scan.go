package repositories

import (
	"fmt"
	"time"

	"github.com/adstudio/backend/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = `id, email, password_hash, tier, downloads_remaining, trial_ends_at, payment_customer_id, created_at, updated_at`

func scanAccount(row scanner) (models.Account, error) {
	var (
		account    models.Account
		tier       string
		trialEnds  *time.Time
		customerID *string
	)
	if err := row.Scan(&account.ID, &account.Email, &account.Password, &tier, &account.DownloadsRemaining,
		&trialEnds, &customerID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return models.Account{}, err
	}

	parsed, err := models.ParseTier(tier)
	if err != nil {
		return models.Account{}, fmt.Errorf("account %s: %w", account.ID, err)
	}
	account.Tier = parsed
	if trialEnds != nil {
		t := trialEnds.UTC()
		account.TrialEndsAt = &t
	}
	if customerID != nil {
		account.PaymentCustomerID = *customerID
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

const videoColumns = `v.id, v.title, v.category, v.duration_seconds, v.file_url, v.thumbnail_url, v.tags, v.created_at`

// scanVideo reads videoColumns followed by any extra destinations.
func scanVideo(row scanner, extra ...any) (models.Video, error) {
	var (
		video    models.Video
		category string
	)
	dest := append([]any{&video.ID, &video.Title, &category, &video.Duration, &video.FileURL,
		&video.ThumbnailURL, &video.Tags, &video.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.Video{}, err
	}

	parsed, err := models.ParseCategory(category)
	if err != nil {
		return models.Video{}, fmt.Errorf("video %s: %w", video.ID, err)
	}
	video.Category = parsed
	if video.Tags == nil {
		video.Tags = []string{}
	}
	video.CreatedAt = video.CreatedAt.UTC()
	return video, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
