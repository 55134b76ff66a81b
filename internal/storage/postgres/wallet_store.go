package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Add tracks a new wallet. Returns ErrDuplicateKey if already tracked.
func (s *WalletStore) Add(ctx context.Context, w *domain.Wallet) (err error) {
	start := time.Now()
	defer func() { observeQuery("add_wallet", start, err) }()

	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO wallets (address, label, added_at) VALUES ($1, $2, $3)`

	_, err = s.pool.Exec(ctx, query, w.Address, w.Label, w.AddedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("add wallet: %w", err)
	}
	return nil
}

// Remove untracks a wallet. Returns ErrNotFound if not tracked.
func (s *WalletStore) Remove(ctx context.Context, address string) (err error) {
	start := time.Now()
	defer func() { observeQuery("remove_wallet", start, err) }()

	tag, err := s.pool.Exec(ctx, `DELETE FROM wallets WHERE address = $1`, address)
	if err != nil {
		return fmt.Errorf("remove wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Get retrieves one tracked wallet.
func (s *WalletStore) Get(ctx context.Context, address string) (w *domain.Wallet, err error) {
	start := time.Now()
	defer func() { observeQuery("get_wallet", start, err) }()

	query := `SELECT address, label, added_at FROM wallets WHERE address = $1`

	var row domain.Wallet
	err = s.pool.QueryRow(ctx, query, address).Scan(&row.Address, &row.Label, &row.AddedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &row, nil
}

// List retrieves all tracked wallets ordered by AddedAt ascending.
func (s *WalletStore) List(ctx context.Context) (wallets []*domain.Wallet, err error) {
	start := time.Now()
	defer func() { observeQuery("list_wallets", start, err) }()

	query := `SELECT address, label, added_at FROM wallets ORDER BY added_at ASC, address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.Address, &w.Label, &w.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}

	return wallets, nil
}
