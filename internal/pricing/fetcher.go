// Package pricing values holdings in USD through the swap-aggregation
// quote service, one token at a time.
package pricing

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"solana-exit-desk/internal/aggregator"
	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/observability"
	"solana-exit-desk/internal/ratelimit"
)

const (
	// DefaultInterval is the minimum spacing between quote calls.
	DefaultInterval = 250 * time.Millisecond

	// DefaultInterTokenDelay is inserted between tokens on top of the rate
	// limiter, as defensive spacing against burst-sensitive providers.
	DefaultInterTokenDelay = 100 * time.Millisecond

	// MinQuoteRaw is the provider-defined minimum quote amount. Held
	// amounts below it are floor-clamped so the service never sees a
	// zero-amount request.
	MinQuoteRaw uint64 = 1000

	// quoteSlippageBps is the slippage tolerance used for valuation
	// quotes. Valuation only reads the exchange rate, so the figure is
	// nominal.
	quoteSlippageBps = 50
)

// Fetcher prices holdings strictly sequentially: quote calls share one
// rate-limited resource, and callers render live progress as each token
// finishes.
type Fetcher struct {
	service    aggregator.Service
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
	stableMint string
	delay      time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithInterval overrides the minimum spacing between quote calls.
func WithInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.limiter = ratelimit.New(d)
	}
}

// WithInterTokenDelay overrides the fixed delay between tokens.
func WithInterTokenDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.delay = d
	}
}

// NewFetcher creates a price fetcher backed by the aggregator service.
func NewFetcher(service aggregator.Service, logger *zap.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		service:    service,
		limiter:    ratelimit.New(DefaultInterval),
		logger:     logger.Named("price_fetcher"),
		stableMint: domain.USDCMint,
		delay:      DefaultInterTokenDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PriceTokens populates PriceUSD, ValueUSD and Status on every holding,
// in the order presented. One token's failure never aborts the rest: a
// no-route or unreachable-service outcome zeroes that token and moves on.
// The input slice is mutated in place and returned in full; entries are
// never removed. The only error returned is context cancellation.
func (f *Fetcher) PriceTokens(ctx context.Context, holdings []domain.TokenHolding, onProgress domain.ProgressFunc) ([]domain.TokenHolding, error) {
	for i := range holdings {
		if err := ctx.Err(); err != nil {
			return holdings, err
		}

		f.priceOne(ctx, &holdings[i])

		if onProgress != nil {
			onProgress(domain.FetchProgress{
				Current: i + 1,
				Total:   len(holdings),
				Symbol:  holdings[i].Symbol,
			})
		}

		if i < len(holdings)-1 {
			select {
			case <-ctx.Done():
				return holdings, ctx.Err()
			case <-time.After(f.delay):
			}
		}
	}
	return holdings, nil
}

// RetryFailed re-runs pricing only for holdings that did not resolve to a
// price, under the same sequential contract. Already-priced entries are
// untouched.
func (f *Fetcher) RetryFailed(ctx context.Context, holdings []domain.TokenHolding, onProgress domain.ProgressFunc) ([]domain.TokenHolding, error) {
	var pending []int
	for i := range holdings {
		if holdings[i].Status != domain.PriceOK {
			pending = append(pending, i)
		}
	}

	for n, i := range pending {
		if err := ctx.Err(); err != nil {
			return holdings, err
		}

		f.priceOne(ctx, &holdings[i])

		if onProgress != nil {
			onProgress(domain.FetchProgress{
				Current: n + 1,
				Total:   len(pending),
				Symbol:  holdings[i].Symbol,
			})
		}

		if n < len(pending)-1 {
			select {
			case <-ctx.Done():
				return holdings, ctx.Err()
			case <-time.After(f.delay):
			}
		}
	}
	return holdings, nil
}

// priceOne resolves one holding's price. The stable reference asset is
// fixed at 1.0 with no network call.
func (f *Fetcher) priceOne(ctx context.Context, h *domain.TokenHolding) {
	defer func() {
		observability.RecordTokenPriced(string(h.Status))
	}()
	if h.Mint == f.stableMint {
		h.PriceUSD = 1.0
		h.ValueUSD = h.UIAmount
		h.Status = domain.PriceOK
		return
	}

	if err := f.limiter.Wait(ctx); err != nil {
		h.PriceUSD, h.ValueUSD = 0, 0
		h.Status = domain.PriceUnavailable
		return
	}

	quotedRaw := h.RawAmount
	if quotedRaw < MinQuoteRaw {
		quotedRaw = MinQuoteRaw
	}

	quote, err := f.service.GetQuote(ctx, aggregator.QuoteRequest{
		InputMint:   h.Mint,
		OutputMint:  f.stableMint,
		Amount:      quotedRaw,
		SlippageBps: quoteSlippageBps,
	})
	if err != nil {
		h.PriceUSD, h.ValueUSD = 0, 0
		if errors.Is(err, aggregator.ErrNoRoute) {
			h.Status = domain.PriceNoRoute
			f.logger.Debug("token not tradable", zap.String("mint", h.Mint), zap.String("symbol", h.Symbol))
		} else {
			h.Status = domain.PriceUnavailable
			f.logger.Warn("pricing failed, zeroing token",
				zap.String("mint", h.Mint),
				zap.String("symbol", h.Symbol),
				zap.Error(err))
		}
		return
	}

	outRaw, err := quote.OutAmountRaw()
	if err != nil {
		h.PriceUSD, h.ValueUSD = 0, 0
		h.Status = domain.PriceUnavailable
		f.logger.Warn("malformed quote amount", zap.String("mint", h.Mint), zap.Error(err))
		return
	}

	quotedUI := float64(quotedRaw) / math.Pow10(int(h.Decimals))
	outUSD := float64(outRaw) / 1e6 // the stable asset has 6 decimals
	if quotedUI <= 0 || outUSD <= 0 {
		h.PriceUSD, h.ValueUSD = 0, 0
		h.Status = domain.PriceNoRoute
		return
	}

	h.PriceUSD = outUSD / quotedUI
	h.ValueUSD = h.PriceUSD * h.UIAmount
	h.Status = domain.PriceOK
}
