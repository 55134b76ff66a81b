// Command liquidate runs the full exit flow for one wallet: fetch
// holdings, price them, allocate a pro-rata share of the selected
// tokens, and execute the swaps into USDC with live progress.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"solana-exit-desk/internal/aggregator"
	"solana-exit-desk/internal/allocation"
	"solana-exit-desk/internal/balances"
	"solana-exit-desk/internal/config"
	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/pricing"
	"solana-exit-desk/internal/signing"
	"solana-exit-desk/internal/solana"
	"solana-exit-desk/internal/swap"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, defaults apply)")
	keypairPath := flag.String("keypair", "", "Path to a file holding the base58-encoded keypair (required)")
	fraction := flag.Float64("fraction", 0.5, "Fraction of selected value to liquidate, 0..1")
	mints := flag.String("mints", "", "Comma-separated mints to liquidate (default: every priced holding)")
	dryRun := flag.Bool("dry-run", false, "Print the allocation and exit without swapping")
	yes := flag.Bool("yes", false, "Skip the interactive confirmation")
	flag.Parse()

	if *keypairPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --keypair is required")
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

	signer, err := loadSigner(*keypairPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading keypair: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	address := signer.PublicKey()
	fmt.Printf("Liquidating for wallet %s\n", address)

	pool := solana.NewPool(cfg.RPC.Endpoints, cfg.EndpointInterval(), logger,
		solana.WithTimeout(cfg.RequestTimeout()))
	fetcher := balances.NewFetcher(pool, balances.NewRegistry(0), logger)

	holdings, err := fetcher.FetchBalances(ctx, address, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching balances: %v\n", err)
		os.Exit(1)
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

	selected, totalSelected := selectHoldings(holdings, *mints)
	if len(selected) == 0 {
		fmt.Println("Nothing to liquidate: no priced holdings matched the selection.")
		return
	}

	allocated := allocation.Allocate(selected, totalSelected, *fraction, domain.USDCMint)
	printAllocation(allocated, totalSelected, *fraction)

	if *dryRun {
		return
	}
	if !*yes && !confirmProceed() {
		fmt.Println("Aborted.")
		return
	}

	pipelineOpts := []swap.Option{
		swap.WithMaxAttempts(cfg.Swap.MaxAttempts),
		swap.WithInterTokenDelay(cfg.SwapDelay()),
		swap.WithConfirmInterval(cfg.ConfirmInterval()),
		swap.WithSlippageBps(cfg.Aggregator.SlippageBps),
		swap.WithPriorityFee(cfg.Swap.PriorityFeeLamports),
	}
	if cfg.RPC.WSEndpoint != "" {
		pipelineOpts = append(pipelineOpts,
			swap.WithConfirmer(solana.NewWSConfirmer(cfg.RPC.WSEndpoint, logger)))
	}
	pipeline := swap.NewPipeline(svc, signer, pool, logger, pipelineOpts...)

	results, summary := pipeline.ExecuteAll(ctx, allocated, func(p domain.SwapProgress) {
		fmt.Printf("\r%-12s %-20s", p.Symbol, p.State)
		if p.State == domain.StateSucceeded || p.State == domain.StateFailed {
			fmt.Println()
		}
	})

	printResults(results, summary)
	if summary.Failed > 0 {
		os.Exit(1)
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

// loadSigner reads a base58-encoded keypair file.
func loadSigner(path string) (*signing.LocalSigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	return signing.NewLocalSignerFromBase58(strings.TrimSpace(string(raw)))
}

// selectHoldings filters to priced holdings, optionally narrowed to an
// explicit mint list, and sums their value.
func selectHoldings(holdings []domain.TokenHolding, mintList string) ([]domain.TokenHolding, float64) {
	wanted := map[string]bool{}
	for _, m := range strings.Split(mintList, ",") {
		if m = strings.TrimSpace(m); m != "" {
			wanted[m] = true
		}
	}

	var selected []domain.TokenHolding
	var total float64
	for _, h := range holdings {
		if h.Status != domain.PriceOK {
			continue
		}
		if len(wanted) > 0 && !wanted[h.Mint] {
			continue
		}
		selected = append(selected, h)
		total += h.ValueUSD
	}
	return selected, total
}

// printAllocation renders what will be swapped before execution.
func printAllocation(allocated []domain.AllocatedToken, totalSelected, fraction float64) {
	fmt.Printf("\nSelected value: $%.2f, liquidating %.0f%% (target $%.2f)\n\n",
		totalSelected, fraction*100, totalSelected*fraction)
	fmt.Printf("%-12s %18s %10s %14s\n", "SYMBOL", "SWAP AMOUNT", "SHARE", "VALUE USD")
	for _, a := range allocated {
		fmt.Printf("%-12s %18.6f %9.1f%% %14.2f\n",
			a.Symbol, a.SwapAmount, a.SharePct*100, a.LiquidationUSD)
	}
	fmt.Println()
}

// confirmProceed asks for an explicit yes on stdin.
func confirmProceed() bool {
	fmt.Print("Proceed with liquidation? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// printResults renders the per-token outcomes and the final summary.
func printResults(results []domain.SwapResult, summary domain.ExecutionSummary) {
	fmt.Println()
	for _, r := range results {
		if r.Succeeded() {
			fmt.Printf("  ok   %-12s %.6f -> %.2f USDC  %s\n",
				r.Symbol, r.AmountIn, r.AmountOut, r.Signature)
		} else {
			fmt.Printf("  FAIL %-12s %.6f  attempts=%d  %v\n",
				r.Symbol, r.AmountIn, r.Attempts+1, r.Err)
		}
	}
	fmt.Printf("\n%d succeeded, %d failed; %.2f USDC received\n",
		summary.Succeeded, summary.Failed, summary.TotalOut)
}
