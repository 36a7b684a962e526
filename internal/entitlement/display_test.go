package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adstudio/backend/internal/models"
)

func TestDisplayRoundTrip(t *testing.T) {
	for _, tier := range models.Tiers {
		first := DisplayFor(tier)
		second := DisplayFor(tier)
		assert.Equal(t, first, second, "display must be stable for %s", tier)

		parsed, err := ParseLabel(first.Label)
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	assert.Equal(t, Display{Label: "Premium", Badge: "yellow"}, DisplayFor(models.TierPremium))
	assert.Equal(t, "gray", DisplayFor(models.Tier("legacy")).Badge)

	_, err := ParseLabel("Gold")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ended := now.Add(-time.Hour)

	trial := Summarize(models.Account{Tier: models.TierTrial, DownloadsRemaining: 2, TrialEndsAt: &ended}, now)
	require.NotNil(t, trial.DownloadsRemaining)
	assert.Equal(t, 2, *trial.DownloadsRemaining)
	assert.True(t, trial.TrialExpired)
	assert.Equal(t, "Trial", trial.Display.Label)

	premium := Summarize(models.Account{Tier: models.TierPremium, DownloadsRemaining: 0}, now)
	assert.True(t, premium.Unlimited)
	assert.Nil(t, premium.DownloadsRemaining)
	assert.Nil(t, premium.TrialEndsAt)
}
