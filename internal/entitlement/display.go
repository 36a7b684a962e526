package entitlement

import (
	"fmt"
	"time"

	"github.com/adstudio/backend/internal/models"
)

// Display is the presentation of a tier.
type Display struct {
	Label string `json:"label"`
	Badge string `json:"badge"`
}

var displays = map[models.Tier]Display{
	models.TierTrial:    {Label: "Trial", Badge: "gray"},
	models.TierBasic:    {Label: "Basic", Badge: "blue"},
	models.TierStandard: {Label: "Standard", Badge: "purple"},
	models.TierPremium:  {Label: "Premium", Badge: "yellow"},
}

// DisplayFor maps a tier to its label and badge colour. Unknown tiers are
// shown verbatim with a neutral badge.
func DisplayFor(tier models.Tier) Display {
	if d, ok := displays[tier]; ok {
		return d
	}
	return Display{Label: string(tier), Badge: "gray"}
}

// ParseLabel is the inverse of DisplayFor for known tiers.
func ParseLabel(label string) (models.Tier, error) {
	for tier, d := range displays {
		if d.Label == label {
			return tier, nil
		}
	}
	return "", fmt.Errorf("unknown tier label %q", label)
}

// Summary is the account overview rendered on the dashboard.
type Summary struct {
	Tier               models.Tier `json:"tier"`
	Display            Display     `json:"display"`
	Unlimited          bool        `json:"unlimited"`
	DownloadsRemaining *int        `json:"downloadsRemaining,omitempty"`
	TrialEndsAt        *time.Time  `json:"trialEndsAt,omitempty"`
	TrialExpired       bool        `json:"trialExpired"`
}

// Summarize derives the overview of account at instant now.
func Summarize(account models.Account, now time.Time) Summary {
	s := Summary{
		Tier:      account.Tier,
		Display:   DisplayFor(account.Tier),
		Unlimited: account.Tier.Unlimited(),
	}
	if !s.Unlimited {
		remaining := account.DownloadsRemaining
		s.DownloadsRemaining = &remaining
	}
	if account.Tier == models.TierTrial && account.TrialEndsAt != nil {
		ends := *account.TrialEndsAt
		s.TrialEndsAt = &ends
		s.TrialExpired = trialEnded(account, now)
	}
	return s
}
