// Command portfolio fetches and values the holdings of one wallet:
// balances through the RPC endpoint pool, prices through the aggregator
// quote service, printed as a valuation table. With --snapshot the
// result is persisted for history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"solana-exit-desk/internal/aggregator"
	"solana-exit-desk/internal/balances"
	"solana-exit-desk/internal/config"
	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/pricing"
	"solana-exit-desk/internal/solana"
	"solana-exit-desk/internal/storage"
	"solana-exit-desk/internal/storage/memory"
	"solana-exit-desk/internal/storage/migrations"
	pgstore "solana-exit-desk/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, defaults apply)")
	address := flag.String("address", "", "Wallet address to analyze (required)")
	snapshot := flag.Bool("snapshot", false, "Persist a valuation snapshot after the run")
	retryFailed := flag.Bool("retry-failed", false, "Re-price tokens that failed on the first pass")
	flag.Parse()

	if *address == "" {
		fmt.Fprintln(os.Stderr, "Error: --address is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	pool := solana.NewPool(cfg.RPC.Endpoints, cfg.EndpointInterval(), logger,
		solana.WithTimeout(cfg.RequestTimeout()))
	fetcher := balances.NewFetcher(pool, balances.NewRegistry(0), logger)

	holdings, err := fetcher.FetchBalances(ctx, *address, func(p domain.FetchProgress) {
		fmt.Printf("\rfetching holdings: %d/%d %-12s", p.Current, p.Total, p.Symbol)
	})
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching balances: %v\n", err)
		os.Exit(1)
	}
	if len(holdings) == 0 {
		fmt.Println("No holdings found.")
		return
	}

	svc := aggregator.New(cfg.Aggregator.BaseURL, logger)
	priceFetcher := pricing.NewFetcher(svc, logger,
		pricing.WithInterval(cfg.QuoteInterval()),
		pricing.WithInterTokenDelay(cfg.PricingDelay()))

	holdings, err = priceFetcher.PriceTokens(ctx, holdings, func(p domain.FetchProgress) {
		fmt.Printf("\rpricing: %d/%d %-12s", p.Current, p.Total, p.Symbol)
	})
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pricing holdings: %v\n", err)
		os.Exit(1)
	}

	if *retryFailed {
		holdings, err = priceFetcher.RetryFailed(ctx, holdings, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error re-pricing holdings: %v\n", err)
			os.Exit(1)
		}
	}

	printValuation(holdings)

	if *snapshot {
		store, cleanup, err := newSnapshotStore(ctx, cfg.Database.DSN, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening snapshot store: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		snap := buildSnapshot(*address, holdings)
		if err := store.Insert(ctx, snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error persisting snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Snapshot %d persisted.\n", snap.ID)
	}
}

// buildLogger creates a production zap logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// printValuation renders the holdings table and the portfolio total.
func printValuation(holdings []domain.TokenHolding) {
	fmt.Printf("%-12s %-16s %18s %14s %16s  %s\n",
		"SYMBOL", "NAME", "AMOUNT", "PRICE USD", "VALUE USD", "STATUS")

	var total float64
	for _, h := range holdings {
		total += h.ValueUSD
		fmt.Printf("%-12s %-16.16s %18.6f %14.6f %16.2f  %s\n",
			h.Symbol, h.Name, h.UIAmount, h.PriceUSD, h.ValueUSD, h.Status)
	}
	fmt.Printf("\nTotal portfolio value: $%.2f across %d holdings\n", total, len(holdings))
}

// buildSnapshot folds priced holdings into a persistable snapshot.
func buildSnapshot(address string, holdings []domain.TokenHolding) *domain.ValuationSnapshot {
	snap := &domain.ValuationSnapshot{
		WalletAddress: address,
		HoldingCount:  len(holdings),
		CreatedAt:     time.Now().UnixMilli(),
	}
	for _, h := range holdings {
		snap.TotalValueUSD += h.ValueUSD
		if h.Status == domain.PriceOK {
			snap.PricedCount++
		}
	}
	return snap
}

// newSnapshotStore returns a Postgres-backed store when a DSN is
// configured, otherwise an in-memory store (useful for dry runs, the
// snapshot does not survive the process).
func newSnapshotStore(ctx context.Context, dsn string, logger *zap.Logger) (storage.SnapshotStore, func(), error) {
	if dsn == "" {
		logger.Warn("no database DSN configured, snapshot will not be persisted beyond this run")
		return memory.NewSnapshotStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.NewSnapshotStore(pool), pool.Close, nil
}
