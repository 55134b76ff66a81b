package solana

// TokenProgramID is the SPL token program that owns fungible token accounts.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// TokenAccount is one SPL token account owned by a wallet.
type TokenAccount struct {
	Pubkey    string  // token account address
	Mint      string  // mint of the held asset
	RawAmount uint64  // balance in base units
	Decimals  uint8   // mint decimal precision
	UIAmount  float64 // RawAmount scaled by Decimals
}

// LatestBlockhash bounds how long a built transaction stays broadcastable.
type LatestBlockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus is the confirmation state of one broadcast transaction.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64     // nil once rooted
	ConfirmationStatus string      // "processed" | "confirmed" | "finalized"
	Err                interface{} // non-nil when the transaction failed on-chain
}

// Confirmed reports whether the transaction reached at least the
// confirmed commitment level.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}
