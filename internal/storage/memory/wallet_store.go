package memory

import (
	"context"
	"sort"
	"sync"

	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Wallet // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{data: make(map[string]*domain.Wallet)}
}

var _ storage.WalletStore = (*WalletStore)(nil)

// Add tracks a new wallet. Returns ErrDuplicateKey if already tracked.
func (s *WalletStore) Add(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[w.Address]; exists {
		return storage.ErrDuplicateKey
	}
	c := *w
	s.data[w.Address] = &c
	return nil
}

// Remove untracks a wallet. Returns ErrNotFound if not tracked.
func (s *WalletStore) Remove(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[address]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, address)
	return nil
}

// Get retrieves one tracked wallet.
func (s *WalletStore) Get(_ context.Context, address string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	c := *w
	return &c, nil
}

// List retrieves all tracked wallets ordered by AddedAt ascending.
func (s *WalletStore) List(_ context.Context) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Wallet, 0, len(s.data))
	for _, w := range s.data {
		c := *w
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AddedAt != result[j].AddedAt {
			return result[i].AddedAt < result[j].AddedAt
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}
