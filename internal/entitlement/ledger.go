package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/models"
)

// Request identifies a single download attempt.
type Request struct {
	AccountID string
	VideoID   string
	At        time.Time
}

// Receipt describes the effect of an authorized download. On denial stores
// still populate Account when it could be read.
type Receipt struct {
	Download  models.Download
	Account   models.Account
	Unlimited bool
}

// Store applies a download atomically: the allowance check, the counter
// decrement and the download record either all take effect or none do.
type Store interface {
	Consume(ctx context.Context, policy Policy, req Request) (Receipt, error)
}

// VideoLookup resolves catalog entries. found is false when the video does not exist.
type VideoLookup interface {
	Find(ctx context.Context, id string) (video models.Video, found bool, err error)
}

// Ledger authorizes downloads and records their effect.
type Ledger struct {
	store  Store
	videos VideoLookup
	policy Policy
	now    func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger constructs a ledger over store. videos may be nil, in which case
// video existence is enforced only by the store.
func NewLedger(store Store, videos VideoLookup, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		videos: videos,
		policy: DefaultPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the rules the ledger applies.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// AuthorizeAndRecordDownload decides whether accountID may download videoID
// and, when it may, appends a download record and consumes one unit of the
// allowance. Denials have no side effects.
func (l *Ledger) AuthorizeAndRecordDownload(ctx context.Context, accountID, videoID string) (Receipt, error) {
	accountID = strings.TrimSpace(accountID)
	videoID = strings.TrimSpace(videoID)
	if accountID == "" {
		return Receipt{}, ErrAccountNotFound
	}
	if videoID == "" {
		return Receipt{}, ErrVideoNotFound
	}

	ctx, span := logging.StartSpan(ctx, "entitlement.authorize_download",
		slog.String("account_id", accountID),
		slog.String("video_id", videoID),
	)
	defer span.End()

	var video *models.Video
	if l.videos != nil {
		v, found, err := l.videos.Find(ctx, videoID)
		if err != nil {
			span.Fail(err)
			metrics.RecordDownloadDecision("", "error", span.Elapsed())
			return Receipt{}, fmt.Errorf("lookup video: %w", err)
		}
		if !found {
			span.Fail(ErrVideoNotFound)
			metrics.RecordDownloadDecision("", outcome(ErrVideoNotFound), span.Elapsed())
			return Receipt{}, ErrVideoNotFound
		}
		video = &v
	}

	receipt, err := l.store.Consume(ctx, l.policy, Request{
		AccountID: accountID,
		VideoID:   videoID,
		At:        l.now().UTC(),
	})
	metrics.RecordDownloadDecision(string(receipt.Account.Tier), outcome(err), span.Elapsed())
	if err != nil {
		span.Fail(err)
		return receipt, err
	}

	if receipt.Download.Video == nil {
		receipt.Download.Video = video
	}
	logging.FromContext(ctx).Info("download authorized",
		slog.String("tier", string(receipt.Account.Tier)),
		slog.Bool("unlimited", receipt.Unlimited),
		slog.Int("downloads_remaining", receipt.Account.DownloadsRemaining),
	)
	return receipt, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "authorized"
	case errors.Is(err, ErrAllowanceExhausted):
		return "exhausted"
	case errors.Is(err, ErrTrialExpired):
		return "trial_expired"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrVideoNotFound):
		return "video_not_found"
	default:
		return "error"
	}
}
