package entitlement

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/adstudio/backend/internal/models"
)

// MemoryStore is an in-process Store guarded by a single mutex.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	videos    map[string]struct{}
	downloads []models.Download
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]models.Account),
		videos:   make(map[string]struct{}),
	}
}

// PutAccount inserts or replaces an account.
func (s *MemoryStore) PutAccount(account models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

// AddVideo registers a video id so downloads of it are accepted.
func (s *MemoryStore) AddVideo(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[id] = struct{}{}
}

// Account returns a copy of the stored account.
func (s *MemoryStore) Account(id string) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	return account, ok
}

// Downloads returns the records of accountID, most recent first.
func (s *MemoryStore) Downloads(accountID string) []models.Download {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Download
	for _, d := range s.downloads {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DownloadedAt.After(out[j].DownloadedAt)
	})
	return out
}

// Consume implements Store.
func (s *MemoryStore) Consume(ctx context.Context, policy Policy, req Request) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[req.AccountID]
	if !ok {
		return Receipt{}, ErrAccountNotFound
	}
	if _, ok := s.videos[req.VideoID]; !ok {
		return Receipt{Account: account}, ErrVideoNotFound
	}
	if err := policy.Authorize(account, req.At); err != nil {
		return Receipt{Account: account}, err
	}

	if !account.Tier.Unlimited() {
		account = policy.Consume(account)
		account.UpdatedAt = req.At
		s.accounts[account.ID] = account
	}

	record := models.Download{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		VideoID:      req.VideoID,
		DownloadedAt: req.At,
	}
	s.downloads = append(s.downloads, record)

	return Receipt{Download: record, Account: account, Unlimited: account.Tier.Unlimited()}, nil
}
