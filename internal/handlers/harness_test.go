package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adstudio/backend/internal/auth"
	"github.com/adstudio/backend/internal/catalog"
	"github.com/adstudio/backend/internal/config"
	"github.com/adstudio/backend/internal/entitlement"
	"github.com/adstudio/backend/internal/models"
	"github.com/adstudio/backend/internal/repositories"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// memAccounts keeps accounts in the ledger's memory store so that downloads
// and account reads observe the same counters.
type memAccounts struct {
	ledger *entitlement.MemoryStore

	mu      sync.Mutex
	byEmail map[string]string
	err     error
}

func (s *memAccounts) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[account.Email]; exists {
		return repositories.ErrConflict
	}
	s.byEmail[account.Email] = account.ID
	s.ledger.PutAccount(account)
	return nil
}

func (s *memAccounts) FindByEmail(_ context.Context, email string) (models.Account, error) {
	s.mu.Lock()
	id, ok := s.byEmail[email]
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	account, _ := s.ledger.Account(id)
	return account, nil
}

func (s *memAccounts) FindByID(_ context.Context, id string) (models.Account, error) {
	if s.err != nil {
		return models.Account{}, s.err
	}
	account, ok := s.ledger.Account(id)
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	return account, nil
}

type memVideos struct {
	mu     sync.Mutex
	videos map[string]models.Video
}

func (s *memVideos) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	return nil
}

func (s *memVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return v, nil
}

func (s *memVideos) List(_ context.Context, filter models.VideoFilter) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.videos {
		if filter.Category != "" && v.Category != filter.Category {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(v.Title), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type memFavorites struct {
	videos *memVideos

	mu    sync.Mutex
	seq   int
	items map[string]models.Favorite
}

func favoriteKey(accountID, videoID string) string { return accountID + "/" + videoID }

func (s *memFavorites) Add(ctx context.Context, accountID, videoID string) (models.Favorite, bool, error) {
	if _, err := s.videos.FindByID(ctx, videoID); err != nil {
		return models.Favorite{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.items[favoriteKey(accountID, videoID)]; ok {
		return f, false, nil
	}
	s.seq++
	f := models.Favorite{
		ID:        fmt.Sprintf("fav-%d", s.seq),
		AccountID: accountID,
		VideoID:   videoID,
		CreatedAt: testNow.Add(time.Duration(s.seq) * time.Second),
	}
	s.items[favoriteKey(accountID, videoID)] = f
	return f, true, nil
}

func (s *memFavorites) Remove(_ context.Context, accountID, videoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := favoriteKey(accountID, videoID)
	_, ok := s.items[key]
	delete(s.items, key)
	return ok, nil
}

func (s *memFavorites) Toggle(ctx context.Context, accountID, videoID string) (bool, error) {
	removed, err := s.Remove(ctx, accountID, videoID)
	if err != nil || removed {
		return false, err
	}
	_, _, err = s.Add(ctx, accountID, videoID)
	return err == nil, err
}

func (s *memFavorites) ListRecent(_ context.Context, accountID string, limit int) ([]models.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Favorite
	for _, f := range s.items {
		if f.AccountID == accountID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type ledgerDownloads struct{ store *entitlement.MemoryStore }

func (s ledgerDownloads) ListRecent(_ context.Context, accountID string, limit int) ([]models.Download, error) {
	out := s.store.Downloads(accountID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []models.CustomOrder
	err    error
}

func (s *memOrders) Create(_ context.Context, order models.CustomOrder) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

func (s *memOrders) ListForAccount(_ context.Context, accountID string, limit int) ([]models.CustomOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CustomOrder
	for i := len(s.orders) - 1; i >= 0 && len(out) < limit; i-- {
		if s.orders[i].AccountID == accountID {
			out = append(out, s.orders[i])
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []models.CustomOrder
	err       error
}

func (p *recordingPublisher) PublishOrder(_ context.Context, order models.CustomOrder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, order)
	return p.err
}

type prefixSigner struct{ err error }

func (s prefixSigner) SignURL(_ context.Context, location string, ttl time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://signed.example.com/%s?ttl=%d", location, int(ttl.Seconds())), nil
}

type stubCheckout struct {
	url string
	err error
}

func (s stubCheckout) Checkout(context.Context, string, string) (string, error) {
	return s.url, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	t         *testing.T
	handler   http.Handler
	deps      Dependencies
	ledger    *entitlement.MemoryStore
	accounts  *memAccounts
	videos    *memVideos
	favorites *memFavorites
	orders    *memOrders
	publisher *recordingPublisher
	manager   *auth.Manager
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()
	clock := func() time.Time { return testNow }

	ledgerStore := entitlement.NewMemoryStore()
	accounts := &memAccounts{ledger: ledgerStore, byEmail: make(map[string]string)}
	videos := &memVideos{videos: make(map[string]models.Video)}
	cat := catalog.New(videos, nil)
	favorites := &memFavorites{videos: videos, items: make(map[string]models.Favorite)}
	orders := &memOrders{}
	publisher := &recordingPublisher{}
	manager := auth.NewManager("test-secret", 15*time.Minute, 24*time.Hour, auth.NewInMemorySessionStore(), auth.WithClock(clock))
	t.Cleanup(manager.Close)

	deps := Dependencies{
		Accounts:       accounts,
		Sessions:       manager,
		Catalog:        cat,
		Ledger:         entitlement.NewLedger(ledgerStore, cat, entitlement.WithClock(clock)),
		Signer:         prefixSigner{},
		Favorites:      favorites,
		Downloads:      ledgerDownloads{store: ledgerStore},
		Orders:         orders,
		Publisher:      publisher,
		Checkout:       stubCheckout{url: "https://pay.example.com/c/1"},
		Trial:          config.TrialConfig{Downloads: 3, Duration: 72 * time.Hour, EnforceExpiry: true},
		DownloadURLTTL: 10 * time.Minute,
		NowFunc:        clock,
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	env := &testEnv{
		t:         t,
		handler:   NewRouter(deps),
		deps:      deps,
		ledger:    ledgerStore,
		accounts:  accounts,
		videos:    videos,
		favorites: favorites,
		orders:    orders,
		publisher: publisher,
		manager:   manager,
	}
	return env
}

func (e *testEnv) addVideo(id string, category models.Category) models.Video {
	e.t.Helper()
	video := models.Video{
		ID:        id,
		Title:     "Clip " + id,
		Category:  category,
		Duration:  20,
		FileURL:   "clips/" + string(category) + "/" + id + ".mp4",
		Tags:      []string{},
		CreatedAt: testNow.Add(-time.Hour),
	}
	if err := e.videos.Create(context.Background(), video); err != nil {
		e.t.Fatalf("create video: %v", err)
	}
	e.ledger.AddVideo(id)
	return video
}

// addAccount stores an account and returns an access token for it.
func (e *testEnv) addAccount(id string, tier models.Tier, remaining int, trialEndsAt *time.Time) string {
	e.t.Helper()
	account := models.Account{
		ID:                 id,
		Email:              id + "@example.com",
		Tier:               tier,
		DownloadsRemaining: remaining,
		TrialEndsAt:        trialEndsAt,
		CreatedAt:          testNow.Add(-24 * time.Hour),
	}
	if err := e.accounts.Create(context.Background(), account); err != nil {
		e.t.Fatalf("create account: %v", err)
	}
	tokens, err := e.manager.Issue(context.Background(), account.ID, account.Email)
	if err != nil {
		e.t.Fatalf("issue tokens: %v", err)
	}
	return tokens.AccessToken
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d got %d: %s", want, rec.Code, rec.Body.String())
	}
}

var errBoom = errors.New("boom")
