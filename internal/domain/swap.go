package domain

// SwapState is one step of the per-token execution state machine.
type SwapState string

const (
	StateQuoting           SwapState = "QUOTING"
	StateBuilding          SwapState = "BUILDING"
	StateAwaitingSignature SwapState = "AWAITING_SIGNATURE"
	StateBroadcasting      SwapState = "BROADCASTING"
	StateConfirming        SwapState = "CONFIRMING"
	StateSucceeded         SwapState = "SUCCEEDED"
	StateFailed            SwapState = "FAILED"
)

// SwapResult is the terminal outcome of executing one allocated token.
// Exactly one of Signature/Err is set.
type SwapResult struct {
	Symbol    string  // token symbol, for display
	Mint      string  // input mint
	AmountIn  float64 // UI amount swapped (attempted on failure)
	AmountOut float64 // UI amount of the output asset received, 0 on failure
	Signature string  // transaction signature on success
	Err       error   // terminal error on failure
	Attempts  int     // retries consumed before the terminal state
}

// Succeeded reports whether the swap reached on-chain confirmation.
func (r SwapResult) Succeeded() bool {
	return r.Err == nil && r.Signature != ""
}

// ExecutionSummary aggregates a batch of swap results.
type ExecutionSummary struct {
	Succeeded int
	Failed    int
	TotalIn   float64 // sum of AmountIn across successful swaps
	TotalOut  float64 // sum of AmountOut across successful swaps
}

// Summarize folds per-token results into an aggregate summary.
func Summarize(results []SwapResult) ExecutionSummary {
	var s ExecutionSummary
	for _, r := range results {
		if r.Succeeded() {
			s.Succeeded++
			s.TotalIn += r.AmountIn
			s.TotalOut += r.AmountOut
		} else {
			s.Failed++
		}
	}
	return s
}

// FailedResults returns the subset of results that did not succeed,
// preserving attempt order, for a retry-failed-only follow-up.
func FailedResults(results []SwapResult) []SwapResult {
	var failed []SwapResult
	for _, r := range results {
		if !r.Succeeded() {
			failed = append(failed, r)
		}
	}
	return failed
}
