// Package entitlement decides whether an account may download a video and
// applies the effect of each authorized download exactly once.
package entitlement

import (
	"errors"
	"time"

	"github.com/adstudio/backend/internal/models"
)

var (
	// ErrAllowanceExhausted is returned when a metered account has no downloads left.
	ErrAllowanceExhausted = errors.New("download allowance exhausted")
	// ErrTrialExpired is returned when a trial account is past its end date.
	ErrTrialExpired = errors.New("trial period has ended")
	// ErrAccountNotFound is returned when the requesting account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrVideoNotFound is returned when the requested video does not exist.
	ErrVideoNotFound = errors.New("video not found")
)

// Policy holds the rules applied to every download attempt.
type Policy struct {
	// EnforceTrialExpiry denies trial accounts whose trial end has passed.
	EnforceTrialExpiry bool
}

// DefaultPolicy enforces trial expiry.
var DefaultPolicy = Policy{EnforceTrialExpiry: true}

// Authorize returns nil when account may download at instant now.
func (p Policy) Authorize(account models.Account, now time.Time) error {
	if account.Tier.Unlimited() {
		return nil
	}
	if p.TrialExpired(account, now) {
		return ErrTrialExpired
	}
	if account.DownloadsRemaining > 0 {
		return nil
	}
	return ErrAllowanceExhausted
}

// TrialExpired reports whether the policy treats account as an expired trial.
func (p Policy) TrialExpired(account models.Account, now time.Time) bool {
	return p.EnforceTrialExpiry && trialEnded(account, now)
}

// Consume returns account after one authorized download. Unlimited accounts
// are returned unchanged and the counter never drops below zero.
func (p Policy) Consume(account models.Account) models.Account {
	if account.Tier.Unlimited() {
		return account
	}
	if account.DownloadsRemaining > 0 {
		account.DownloadsRemaining--
	}
	return account
}

func trialEnded(account models.Account, now time.Time) bool {
	return account.Tier == models.TierTrial &&
		account.TrialEndsAt != nil &&
		!now.Before(*account.TrialEndsAt)
}
