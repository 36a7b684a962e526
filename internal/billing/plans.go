// Package billing describes the subscription plans and starts hosted
// checkout sessions for them.
package billing

import (
	"errors"
	"strings"

	"github.com/adstudio/backend/internal/models"
)

// PlanCustom is the per-clip plan ordered through the custom order form.
const PlanCustom = "custom"

// Plan is an entry of the public plan catalog. Prices are in whole yen.
type Plan struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Tier               models.Tier `json:"tier,omitempty"`
	PriceYen           int         `json:"priceYen"`
	PriceIsMinimum     bool        `json:"priceIsMinimum,omitempty"`
	PerClip            bool        `json:"perClip,omitempty"`
	MonthlyDownloads   *int        `json:"monthlyDownloads"`
	UnlimitedDownloads bool        `json:"unlimitedDownloads"`
	Popular            bool        `json:"popular"`
	Features           []string    `json:"features"`
}

var (
	// ErrUnknownPlan indicates the plan id is not in the catalog.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrCustomPlan indicates the custom plan, which is ordered through the
	// custom order form rather than checkout.
	ErrCustomPlan = errors.New("custom plan is ordered through the order form")
	// ErrAlreadyOnPlan indicates the account already holds the requested tier.
	ErrAlreadyOnPlan = errors.New("account is already on this plan")
)

func downloads(n int) *int { return &n }

var plans = []Plan{
	{
		ID:               string(models.TierBasic),
		Name:             "Basic",
		Tier:             models.TierBasic,
		PriceYen:         49800,
		MonthlyDownloads: downloads(30),
		Features:         []string{"30 downloads per month", "Full HD clips", "Commercial license"},
	},
	{
		ID:               string(models.TierStandard),
		Name:             "Standard",
		Tier:             models.TierStandard,
		PriceYen:         98000,
		MonthlyDownloads: downloads(100),
		Popular:          true,
		Features:         []string{"100 downloads per month", "Full HD and 4K clips", "Commercial license", "Priority support"},
	},
	{
		ID:                 string(models.TierPremium),
		Name:               "Premium",
		Tier:               models.TierPremium,
		PriceYen:           148000,
		UnlimitedDownloads: true,
		Features:           []string{"Unlimited downloads", "Full HD and 4K clips", "Commercial license", "Dedicated account manager"},
	},
	{
		ID:             PlanCustom,
		Name:           "Custom",
		PriceYen:       3000,
		PriceIsMinimum: true,
		PerClip:        true,
		Features:       []string{"Clips produced to your brief", "Choose talent age range and style"},
	},
}

// Plans returns the plan catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// FindPlan looks a plan up by id, case-insensitively.
func FindPlan(id string) (Plan, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}
