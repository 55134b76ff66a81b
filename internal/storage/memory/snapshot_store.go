package memory

import (
	"context"
	"sort"
	"sync"

	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Used by tests and offline runs where Postgres is not configured.
type SnapshotStore struct {
	mu     sync.RWMutex
	nextID int64
	data   []*domain.ValuationSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{nextID: 1}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert persists a new snapshot and fills in its assigned ID.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.ValuationSnapshot) error {
	if snap == nil || snap.WalletAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *snap
	stored.ID = s.nextID
	s.nextID++
	s.data = append(s.data, &stored)

	snap.ID = stored.ID
	return nil
}

// GetLatest retrieves the most recent snapshot for a wallet.
func (s *SnapshotStore) GetLatest(ctx context.Context, walletAddress string) (*domain.ValuationSnapshot, error) {
	snaps, err := s.GetByWallet(ctx, walletAddress, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[0], nil
}

// GetByWallet retrieves up to limit snapshots for a wallet, newest first.
func (s *SnapshotStore) GetByWallet(_ context.Context, walletAddress string, limit int) ([]*domain.ValuationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ValuationSnapshot
	for _, snap := range s.data {
		if snap.WalletAddress == walletAddress {
			c := *snap
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
