package models

import (
	"fmt"
	"time"
)

// Tier is the subscription level governing an account's download allowance.
type Tier string

const (
	TierTrial    Tier = "trial"
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Tiers lists every known tier in ascending order.
var Tiers = []Tier{TierTrial, TierBasic, TierStandard, TierPremium}

// ParseTier validates a tier read from storage or user input.
func ParseTier(value string) (Tier, error) {
	for _, tier := range Tiers {
		if string(tier) == value {
			return tier, nil
		}
	}
	return "", fmt.Errorf("unknown subscription tier %q", value)
}

// Unlimited reports whether the tier bypasses the download counter.
func (t Tier) Unlimited() bool {
	return t == TierPremium
}

// Account represents a marketplace customer together with their entitlement state.
type Account struct {
	ID                 string
	Email              string
	Password           string
	Tier               Tier
	DownloadsRemaining int
	TrialEndsAt        *time.Time
	PaymentCustomerID  string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Category groups catalog videos.
type Category string

const (
	CategoryBeauty   Category = "beauty"
	CategoryDiet     Category = "diet"
	CategoryHairCare Category = "hair-care"
	CategoryDaily    Category = "daily"
)

// Categories lists the catalog categories in display order.
var Categories = []Category{CategoryBeauty, CategoryDiet, CategoryHairCare, CategoryDaily}

// ParseCategory validates a category read from storage or user input.
func ParseCategory(value string) (Category, error) {
	for _, category := range Categories {
		if string(category) == value {
			return category, nil
		}
	}
	return "", fmt.Errorf("unknown video category %q", value)
}

// Video is a downloadable catalog asset.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Category     Category  `json:"category"`
	Duration     int       `json:"durationSeconds"`
	FileURL      string    `json:"fileUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Favorite bookmarks a video for an account.
type Favorite struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	VideoID   string    `json:"videoId"`
	CreatedAt time.Time `json:"createdAt"`
	Video     *Video    `json:"video,omitempty"`
}

// Download is an append-only record of a consumed entitlement.
type Download struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	VideoID      string    `json:"videoId"`
	DownloadedAt time.Time `json:"downloadedAt"`
	Video        *Video    `json:"video,omitempty"`
}

// CustomOrder is a bespoke production request.
type CustomOrder struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Description string    `json:"description"`
	AgeRange    string    `json:"ageRange"`
	Style       string    `json:"style"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	OrderStatusPending      = "pending"
	OrderStatusQuoted       = "quoted"
	OrderStatusInProduction = "in_production"
	OrderStatusFulfilled    = "fulfilled"
	OrderStatusCancelled    = "cancelled"
)

// SessionTokens groups the bearer credentials issued to authenticated accounts.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// VideoFilter narrows a catalog listing. A zero Category matches every category.
type VideoFilter struct {
	Category Category
	Query    string
	Limit    int
}
