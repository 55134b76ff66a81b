package domain

// AllocatedToken is a holding annotated with its share of a liquidation.
// Immutable once created; recomputed from scratch whenever the selection
// or target fraction changes.
type AllocatedToken struct {
	TokenHolding

	SwapAmount     float64 // UI amount to swap, always <= OriginalAmount
	SharePct       float64 // this holding's share of the selected value, 0..1
	LiquidationUSD float64 // USD value this token contributes to the target
	OriginalAmount float64 // UI amount held when the allocation was computed
}

// RawSwapAmount converts SwapAmount to base units for quoting.
func (a AllocatedToken) RawSwapAmount() uint64 {
	if a.SwapAmount <= 0 {
		return 0
	}
	scale := float64(1)
	for i := uint8(0); i < a.Decimals; i++ {
		scale *= 10
	}
	return uint64(a.SwapAmount * scale)
}
