package domain

// ValuationSnapshot is a finalized portfolio valuation persisted after a
// full analysis run. Corresponds to valuation_snapshots in PostgreSQL.
type ValuationSnapshot struct {
	ID            int64   // BIGSERIAL primary key
	WalletAddress string  // address the snapshot was taken for
	TotalValueUSD float64 // sum of holding values at snapshot time
	HoldingCount  int     // holdings with non-zero balance
	PricedCount   int     // holdings with PriceOK status
	CreatedAt     int64   // Unix timestamp in milliseconds
}

// Wallet is a tracked address in the user's wallet list.
type Wallet struct {
	Address string // base58 wallet address, primary key
	Label   string // optional user-assigned label
	AddedAt int64  // Unix timestamp in milliseconds
}
