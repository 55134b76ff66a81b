package balances

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/solana"
)

// DefaultMaxAttempts bounds endpoint failover per RPC operation.
const DefaultMaxAttempts = 3

// Fetcher retrieves all fungible holdings for one address: the native SOL
// balance plus every SPL token account, fetched through the endpoint pool.
type Fetcher struct {
	pool        *solana.Pool
	registry    *Registry
	logger      *zap.Logger
	maxAttempts int
}

// NewFetcher creates a balance fetcher over the given pool and registry.
func NewFetcher(pool *solana.Pool, registry *Registry, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		pool:        pool,
		registry:    registry,
		logger:      logger.Named("balance_fetcher"),
		maxAttempts: DefaultMaxAttempts,
	}
}

// FetchBalances retrieves all non-zero holdings for address. The native
// balance and the token-account list are independent, so they are fetched
// in parallel; everything downstream of this call is sequential.
//
// Failure semantics: an invalid address or exhausted failover fails the
// whole call; a single malformed token-account record is skipped with a
// warning. Zero balances are dropped: they carry no allocatable value.
func (f *Fetcher) FetchBalances(ctx context.Context, address string, onProgress domain.ProgressFunc) ([]domain.TokenHolding, error) {
	if err := solana.ValidateAddress(address); err != nil {
		return nil, err
	}

	var (
		lamports uint64
		accounts []solana.TokenAccount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return f.pool.ExecuteWithFailover(gctx, func(ctx context.Context, client solana.Client) error {
			var err error
			lamports, err = client.GetBalance(ctx, address)
			return err
		}, f.maxAttempts)
	})
	g.Go(func() error {
		return f.pool.ExecuteWithFailover(gctx, func(ctx context.Context, client solana.Client) error {
			var err error
			accounts, err = client.GetTokenAccountsByOwner(ctx, address)
			return err
		}, f.maxAttempts)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch balances for %s: %w", address, err)
	}

	holdings := make([]domain.TokenHolding, 0, len(accounts)+1)

	if lamports > 0 {
		holdings = append(holdings, domain.TokenHolding{
			Mint:      domain.SOLMint,
			Symbol:    "SOL",
			Name:      "Solana",
			RawAmount: lamports,
			Decimals:  domain.SOLDecimals,
			UIAmount:  float64(lamports) / math.Pow10(domain.SOLDecimals),
			Status:    domain.PriceUnknown,
		})
	}

	for _, acct := range accounts {
		if acct.UIAmount <= 0 {
			continue
		}
		if acct.Mint == "" {
			f.logger.Warn("skipping malformed token account record",
				zap.String("wallet", address),
				zap.String("account", acct.Pubkey))
			continue
		}

		symbol, name, logo := domain.UnknownSymbol, domain.UnknownName, ""
		if meta, ok := f.registry.Lookup(acct.Mint); ok {
			symbol, name, logo = meta.Symbol, meta.Name, meta.LogoURI
		}

		holdings = append(holdings, domain.TokenHolding{
			Mint:      acct.Mint,
			Symbol:    symbol,
			Name:      name,
			RawAmount: acct.RawAmount,
			Decimals:  acct.Decimals,
			UIAmount:  acct.UIAmount,
			Status:    domain.PriceUnknown,
			LogoURI:   logo,
		})
	}

	// Stable presentation order; callers may re-sort by value after pricing.
	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].UIAmount > holdings[j].UIAmount
	})

	for i, h := range holdings {
		if onProgress != nil {
			onProgress(domain.FetchProgress{Current: i + 1, Total: len(holdings), Symbol: h.Symbol})
		}
	}

	f.logger.Info("fetched holdings",
		zap.String("wallet", address),
		zap.Int("count", len(holdings)))
	return holdings, nil
}
