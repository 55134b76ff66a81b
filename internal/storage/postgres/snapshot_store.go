package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert persists a new snapshot and fills in its assigned ID.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.ValuationSnapshot) (err error) {
	start := time.Now()
	defer func() { observeQuery("insert_snapshot", start, err) }()

	if snap == nil || snap.WalletAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO valuation_snapshots (
			wallet_address, total_value_usd, holding_count, priced_count, created_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err = s.pool.QueryRow(ctx, query,
		snap.WalletAddress,
		snap.TotalValueUSD,
		snap.HoldingCount,
		snap.PricedCount,
		snap.CreatedAt,
	).Scan(&snap.ID)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for a wallet.
func (s *SnapshotStore) GetLatest(ctx context.Context, walletAddress string) (snap *domain.ValuationSnapshot, err error) {
	start := time.Now()
	defer func() { observeQuery("get_latest_snapshot", start, err) }()

	query := `
		SELECT id, wallet_address, total_value_usd, holding_count, priced_count, created_at
		FROM valuation_snapshots
		WHERE wallet_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var row domain.ValuationSnapshot
	err = s.pool.QueryRow(ctx, query, walletAddress).Scan(
		&row.ID,
		&row.WalletAddress,
		&row.TotalValueUSD,
		&row.HoldingCount,
		&row.PricedCount,
		&row.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return &row, nil
}

// GetByWallet retrieves up to limit snapshots for a wallet, newest first.
func (s *SnapshotStore) GetByWallet(ctx context.Context, walletAddress string, limit int) (snaps []*domain.ValuationSnapshot, err error) {
	start := time.Now()
	defer func() { observeQuery("get_snapshots_by_wallet", start, err) }()

	query := `
		SELECT id, wallet_address, total_value_usd, holding_count, priced_count, created_at
		FROM valuation_snapshots
		WHERE wallet_address = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{walletAddress}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by wallet: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans multiple rows into a slice of ValuationSnapshot.
func scanSnapshots(rows pgx.Rows) ([]*domain.ValuationSnapshot, error) {
	var snaps []*domain.ValuationSnapshot

	for rows.Next() {
		var snap domain.ValuationSnapshot

		err := rows.Scan(
			&snap.ID,
			&snap.WalletAddress,
			&snap.TotalValueUSD,
			&snap.HoldingCount,
			&snap.PricedCount,
			&snap.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snaps, nil
}
