package storage

import (
	"context"

	"solana-exit-desk/internal/domain"
)

// SnapshotStore provides access to valuation_snapshots storage.
// Snapshots are append-only: one row per completed analysis run.
type SnapshotStore interface {
	// Insert persists a new snapshot and fills in its assigned ID.
	Insert(ctx context.Context, s *domain.ValuationSnapshot) error

	// GetLatest retrieves the most recent snapshot for a wallet.
	// Returns ErrNotFound if the wallet has no snapshots.
	GetLatest(ctx context.Context, walletAddress string) (*domain.ValuationSnapshot, error)

	// GetByWallet retrieves up to limit snapshots for a wallet, newest
	// first. limit <= 0 means no limit.
	GetByWallet(ctx context.Context, walletAddress string, limit int) ([]*domain.ValuationSnapshot, error)
}

// WalletStore provides access to the tracked wallet list.
type WalletStore interface {
	// Add tracks a new wallet. Returns ErrDuplicateKey if the address is
	// already tracked.
	Add(ctx context.Context, w *domain.Wallet) error

	// Remove untracks a wallet. Returns ErrNotFound if not tracked.
	Remove(ctx context.Context, address string) error

	// Get retrieves one tracked wallet. Returns ErrNotFound if not tracked.
	Get(ctx context.Context, address string) (*domain.Wallet, error)

	// List retrieves all tracked wallets ordered by AddedAt ascending.
	List(ctx context.Context) ([]*domain.Wallet, error)
}
