package domain

// FetchProgress is emitted by the balance and price fetchers after each
// item so a caller can render live progress. Purely observational.
type FetchProgress struct {
	Current int    // 1-based index of the item just finished
	Total   int    // total items in this run
	Symbol  string // symbol of the item just finished
}

// SwapProgress is emitted by the swap pipeline on every state transition.
type SwapProgress struct {
	Symbol string
	Mint   string
	State  SwapState
}

// ProgressFunc receives fetch progress events. Implementations must not
// block; nil is a valid no-op observer.
type ProgressFunc func(FetchProgress)

// SwapProgressFunc receives swap state transitions. Nil is a no-op.
type SwapProgressFunc func(SwapProgress)
