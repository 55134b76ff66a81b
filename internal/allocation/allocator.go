// Package allocation computes pro-rata swap amounts: a target liquidation
// value distributed across selected holdings in proportion to each
// holding's share of the selected value.
package allocation

import "solana-exit-desk/internal/domain"

// Allocate distributes a liquidation across the selected holdings. Pure
// and deterministic: no I/O, no hidden state, identical inputs yield
// identical outputs.
//
// Holdings whose mint equals outputMint are excluded before shares are
// computed (swapping an asset into itself is meaningless) and
// totalSelectedValue is recomputed over the remaining set. An unpriced
// holding (price 0) contributes no swap amount even when selected. A
// holding can never be allocated beyond what is actually held:
// SwapAmount <= OriginalAmount always.
func Allocate(selected []domain.TokenHolding, totalSelectedValue, liquidationFraction float64, outputMint string) []domain.AllocatedToken {
	if liquidationFraction < 0 {
		liquidationFraction = 0
	}
	if liquidationFraction > 1 {
		liquidationFraction = 1
	}

	base := selected
	if outputMint != "" {
		filtered := make([]domain.TokenHolding, 0, len(selected))
		excluded := false
		for _, h := range selected {
			if h.Mint == outputMint {
				excluded = true
				continue
			}
			filtered = append(filtered, h)
		}
		if excluded {
			base = filtered
			totalSelectedValue = 0
			for _, h := range base {
				totalSelectedValue += h.ValueUSD
			}
		}
	}

	targetValue := totalSelectedValue * liquidationFraction

	allocated := make([]domain.AllocatedToken, 0, len(base))
	for _, h := range base {
		share := 0.0
		if totalSelectedValue > 0 {
			share = h.ValueUSD / totalSelectedValue
		}
		liquidationUSD := targetValue * share

		swapAmount := 0.0
		if h.PriceUSD > 0 {
			swapAmount = liquidationUSD / h.PriceUSD
		}
		if swapAmount > h.UIAmount {
			swapAmount = h.UIAmount
		}
		if swapAmount < 0 {
			swapAmount = 0
		}

		allocated = append(allocated, domain.AllocatedToken{
			TokenHolding:   h,
			SwapAmount:     swapAmount,
			SharePct:       share,
			LiquidationUSD: liquidationUSD,
			OriginalAmount: h.UIAmount,
		})
	}
	return allocated
}
