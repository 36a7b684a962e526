package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adstudio/backend/internal/models"
)

type stubVideos struct {
	videos map[string]models.Video
	err    error
}

func (s stubVideos) Find(_ context.Context, id string) (models.Video, bool, error) {
	if s.err != nil {
		return models.Video{}, false, s.err
	}
	v, ok := s.videos[id]
	return v, ok, nil
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, accounts ...models.Account) (*Ledger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	for _, a := range accounts {
		store.PutAccount(a)
	}
	videos := stubVideos{videos: map[string]models.Video{}}
	for _, id := range []string{"video-x", "video-y"} {
		store.AddVideo(id)
		videos.videos[id] = models.Video{ID: id, Title: "Clip " + id, FileURL: "clips/" + id + ".mp4"}
	}
	ledger := NewLedger(store, videos, WithClock(func() time.Time { return fixedNow }))
	return ledger, store
}

func TestLedgerBasicWithOneDownload(t *testing.T) {
	ledger, store := newTestLedger(t, models.Account{ID: "acct", Tier: models.TierBasic, DownloadsRemaining: 1})
	ctx := context.Background()

	receipt, err := ledger.AuthorizeAndRecordDownload(ctx, "acct", "video-x")
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.Account.DownloadsRemaining)
	assert.False(t, receipt.Unlimited)
	assert.Equal(t, "video-x", receipt.Download.VideoID)
	require.NotNil(t, receipt.Download.Video)
	assert.Equal(t, "clips/video-x.mp4", receipt.Download.Video.FileURL)

	_, err = ledger.AuthorizeAndRecordDownload(ctx, "acct", "video-y")
	assert.ErrorIs(t, err, ErrAllowanceExhausted)

	account, _ := store.Account("acct")
	assert.Equal(t, 0, account.DownloadsRemaining)
	assert.Len(t, store.Downloads("acct"), 1)
}

func TestLedgerMeteredDecrementsByOne(t *testing.T) {
	ledger, store := newTestLedger(t, models.Account{ID: "acct", Tier: models.TierStandard, DownloadsRemaining: 100})

	_, err := ledger.AuthorizeAndRecordDownload(context.Background(), "acct", "video-x")
	require.NoError(t, err)

	account, _ := store.Account("acct")
	assert.Equal(t, 99, account.DownloadsRemaining)
	assert.Len(t, store.Downloads("acct"), 1)
}

func TestLedgerPremiumIgnoresCounter(t *testing.T) {
	ledger, store := newTestLedger(t, models.Account{ID: "vip", Tier: models.TierPremium, DownloadsRemaining: 0})

	for i := 0; i < 3; i++ {
		receipt, err := ledger.AuthorizeAndRecordDownload(context.Background(), "vip", "video-x")
		require.NoError(t, err)
		assert.True(t, receipt.Unlimited)
	}

	account, _ := store.Account("vip")
	assert.Equal(t, 0, account.DownloadsRemaining)
	assert.Len(t, store.Downloads("vip"), 3)
}

func TestLedgerDenialHasNoSideEffects(t *testing.T) {
	ledger, store := newTestLedger(t, models.Account{ID: "acct", Tier: models.TierBasic, DownloadsRemaining: 0})

	_, err := ledger.AuthorizeAndRecordDownload(context.Background(), "acct", "video-x")
	assert.ErrorIs(t, err, ErrAllowanceExhausted)
	assert.Empty(t, store.Downloads("acct"))
}

func TestLedgerTrialExpiry(t *testing.T) {
	ended := fixedNow.Add(-time.Hour)
	account := models.Account{ID: "trial", Tier: models.TierTrial, DownloadsRemaining: 3, TrialEndsAt: &ended}

	ledger, store := newTestLedger(t, account)
	_, err := ledger.AuthorizeAndRecordDownload(context.Background(), "trial", "video-x")
	assert.ErrorIs(t, err, ErrTrialExpired)
	assert.Empty(t, store.Downloads("trial"))

	lenient := NewLedger(store, nil, WithPolicy(Policy{EnforceTrialExpiry: false}), WithClock(func() time.Time { return fixedNow }))
	receipt, err := lenient.AuthorizeAndRecordDownload(context.Background(), "trial", "video-x")
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Account.DownloadsRemaining)
}

func TestLedgerUnknownVideoAndAccount(t *testing.T) {
	ledger, store := newTestLedger(t, models.Account{ID: "acct", Tier: models.TierBasic, DownloadsRemaining: 2})

	_, err := ledger.AuthorizeAndRecordDownload(context.Background(), "acct", "missing")
	assert.ErrorIs(t, err, ErrVideoNotFound)

	_, err = ledger.AuthorizeAndRecordDownload(context.Background(), "ghost", "video-x")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = ledger.AuthorizeAndRecordDownload(context.Background(), " ", "video-x")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	account, _ := store.Account("acct")
	assert.Equal(t, 2, account.DownloadsRemaining)
}

func TestLedgerCatalogFailure(t *testing.T) {
	store := NewMemoryStore()
	store.PutAccount(models.Account{ID: "acct", Tier: models.TierBasic, DownloadsRemaining: 2})
	boom := errors.New("catalog unavailable")
	ledger := NewLedger(store, stubVideos{err: boom})

	_, err := ledger.AuthorizeAndRecordDownload(context.Background(), "acct", "video-x")
	assert.ErrorIs(t, err, boom)
}

func TestLedgerConcurrentRequestsGrantExactlyOne(t *testing.T) {
	ledger, store := newTestLedger(t, models.Account{ID: "acct", Tier: models.TierBasic, DownloadsRemaining: 1})

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		granted   int
		exhausted int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := ledger.AuthorizeAndRecordDownload(context.Background(), "acct", "video-x")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case errors.Is(err, ErrAllowanceExhausted):
				exhausted++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, granted)
	assert.Equal(t, attempts-1, exhausted)

	account, _ := store.Account("acct")
	assert.Equal(t, 0, account.DownloadsRemaining)
	assert.Len(t, store.Downloads("acct"), 1)
}
