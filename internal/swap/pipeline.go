// Package swap executes allocated liquidations one token at a time: a
// per-token state machine quote → build → sign → broadcast → confirm,
// with bounded retries from a fresh quote and partial-failure isolation.
package swap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"solana-exit-desk/internal/aggregator"
	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/observability"
	"solana-exit-desk/internal/signing"
	"solana-exit-desk/internal/solana"
)

const (
	// DefaultMaxAttempts bounds how many times one token is attempted.
	DefaultMaxAttempts = 3

	// DefaultInterTokenDelay spaces consecutive tokens so bursts of swaps
	// do not trip aggregator or RPC throttles.
	DefaultInterTokenDelay = 2 * time.Second

	// DefaultConfirmInterval is the signature-status polling cadence.
	DefaultConfirmInterval = 2 * time.Second

	// DefaultSlippageBps is the execution slippage tolerance.
	DefaultSlippageBps = 50

	// confirmTimeout is an absolute ceiling on one confirmation wait, on
	// top of the blockhash-expiry check.
	confirmTimeout = 90 * time.Second

	// rpcAttempts is the failover budget for each RPC call the pipeline
	// makes through the pool.
	rpcAttempts = 3

	// outputDecimals is the decimal precision of the liquidation target
	// asset (USDC).
	outputDecimals = 6

	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// ErrInvalidAmount marks a token whose allocated amount rounds to zero
// base units. Permanent: never retried.
var ErrInvalidAmount = errors.New("swap amount is zero")

// ErrExpired marks a broadcast transaction whose blockhash lapsed before
// the cluster confirmed it. Retryable from a fresh quote.
var ErrExpired = errors.New("transaction expired before confirmation")

// OnChainError is a transaction the cluster confirmed as failed. The
// detail is the raw `err` object from the signature status.
type OnChainError struct {
	Signature string
	Detail    interface{}
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("transaction %s failed on-chain: %v", e.Signature, e.Detail)
}

// Confirmer waits for one signature to reach confirmed commitment.
// Satisfied by solana.WSConfirmer; nil means poll signature statuses.
type Confirmer interface {
	WaitForSignature(ctx context.Context, signature string) (txErr interface{}, err error)
}

// Pipeline drives swap execution for a batch of allocated tokens.
// Sequential by design: one instance serves one caller at a time.
type Pipeline struct {
	service   aggregator.Service
	signer    signing.Signer
	pool      *solana.Pool
	confirmer Confirmer
	logger    *zap.Logger

	maxAttempts     int
	interTokenDelay time.Duration
	confirmInterval time.Duration
	slippageBps     int
	priorityFee     uint64
	outputMint      string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxAttempts overrides the per-token attempt bound.
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithInterTokenDelay overrides the delay between consecutive tokens.
func WithInterTokenDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.interTokenDelay = d }
}

// WithConfirmInterval overrides the signature-status polling cadence.
func WithConfirmInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.confirmInterval = d }
}

// WithConfirmer installs a push-based confirmer. Polling remains the
// fallback when it errors.
func WithConfirmer(c Confirmer) Option {
	return func(p *Pipeline) { p.confirmer = c }
}

// WithSlippageBps overrides the execution slippage tolerance.
func WithSlippageBps(bps int) Option {
	return func(p *Pipeline) { p.slippageBps = bps }
}

// WithPriorityFee sets the prioritization fee attached to built swaps.
func WithPriorityFee(lamports uint64) Option {
	return func(p *Pipeline) { p.priorityFee = lamports }
}

// NewPipeline wires the execution pipeline. The output asset is fixed to
// the stable liquidation target.
func NewPipeline(service aggregator.Service, signer signing.Signer, pool *solana.Pool, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		service:         service,
		signer:          signer,
		pool:            pool,
		logger:          logger.Named("swap_pipeline"),
		maxAttempts:     DefaultMaxAttempts,
		interTokenDelay: DefaultInterTokenDelay,
		confirmInterval: DefaultConfirmInterval,
		slippageBps:     DefaultSlippageBps,
		outputMint:      domain.USDCMint,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExecuteAll runs every allocated token through the state machine in
// order. One token's failure never aborts the rest. Cancellation is
// honored between tokens and between attempts; once a transaction is
// broadcast its confirmation runs to a terminal state regardless.
// Results are positionally aligned with the input.
func (p *Pipeline) ExecuteAll(ctx context.Context, tokens []domain.AllocatedToken, onProgress domain.SwapProgressFunc) ([]domain.SwapResult, domain.ExecutionSummary) {
	results := make([]domain.SwapResult, 0, len(tokens))

	for i, tok := range tokens {
		if err := ctx.Err(); err != nil {
			for _, rest := range tokens[i:] {
				results = append(results, domain.SwapResult{
					Symbol:   rest.Symbol,
					Mint:     rest.Mint,
					AmountIn: rest.SwapAmount,
					Err:      err,
				})
			}
			break
		}

		results = append(results, p.executeOne(ctx, tok, onProgress))

		if i < len(tokens)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(p.interTokenDelay):
			}
		}
	}

	summary := domain.Summarize(results)
	p.logger.Info("execution finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return results, summary
}

// RetryFailed re-executes only the tokens whose prior result failed,
// preserving the original allocation amounts.
func (p *Pipeline) RetryFailed(ctx context.Context, tokens []domain.AllocatedToken, prior []domain.SwapResult, onProgress domain.SwapProgressFunc) ([]domain.SwapResult, domain.ExecutionSummary) {
	failed := make(map[string]bool, len(prior))
	for _, r := range prior {
		if !r.Succeeded() {
			failed[r.Mint] = true
		}
	}

	var pending []domain.AllocatedToken
	for _, tok := range tokens {
		if failed[tok.Mint] {
			pending = append(pending, tok)
		}
	}
	return p.ExecuteAll(ctx, pending, onProgress)
}

// executeOne runs the full state machine for one token, retrying from a
// fresh quote with exponential backoff until success, a permanent error,
// or the attempt budget runs out.
func (p *Pipeline) executeOne(ctx context.Context, tok domain.AllocatedToken, onProgress domain.SwapProgressFunc) domain.SwapResult {
	result := domain.SwapResult{
		Symbol:   tok.Symbol,
		Mint:     tok.Mint,
		AmountIn: tok.SwapAmount,
	}

	start := time.Now()
	defer func() {
		outcome := "failed"
		if result.Succeeded() {
			outcome = "succeeded"
			observability.RecordLiquidatedValue(tok.LiquidationUSD)
		}
		observability.RecordSwap(outcome, result.Attempts, time.Since(start).Seconds())
	}()

	emit := func(state domain.SwapState) {
		if onProgress != nil {
			onProgress(domain.SwapProgress{Symbol: tok.Symbol, Mint: tok.Mint, State: state})
		}
	}

	if tok.RawSwapAmount() == 0 {
		result.Err = ErrInvalidAmount
		emit(domain.StateFailed)
		return result
	}

	bo := &backoff.Backoff{
		Min:    backoffBase,
		Max:    backoffCap,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		result.Attempts = attempt

		sig, out, err := p.attempt(ctx, tok, emit)
		if err == nil {
			result.Signature = sig
			result.AmountOut = out
			result.Err = nil
			emit(domain.StateSucceeded)
			return result
		}
		result.Err = err

		if !retryable(err) || attempt+1 >= p.maxAttempts || ctx.Err() != nil {
			p.logger.Warn("swap failed",
				zap.String("symbol", tok.Symbol),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			emit(domain.StateFailed)
			return result
		}

		wait := bo.Duration()
		p.logger.Warn("swap attempt failed, retrying from quote",
			zap.String("symbol", tok.Symbol),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			emit(domain.StateFailed)
			return result
		case <-time.After(wait):
		}
	}
}

// attempt performs one pass through the state machine. Every attempt
// starts from a fresh quote: quotes and blockhashes go stale faster than
// a backoff sleep.
func (p *Pipeline) attempt(ctx context.Context, tok domain.AllocatedToken, emit func(domain.SwapState)) (signature string, amountOut float64, err error) {
	emit(domain.StateQuoting)
	quote, err := p.service.GetQuote(ctx, aggregator.QuoteRequest{
		InputMint:   tok.Mint,
		OutputMint:  p.outputMint,
		Amount:      tok.RawSwapAmount(),
		SlippageBps: p.slippageBps,
	})
	if err != nil {
		return "", 0, fmt.Errorf("quote: %w", err)
	}

	emit(domain.StateBuilding)
	var blockhash *solana.LatestBlockhash
	err = p.pool.ExecuteWithFailover(ctx, func(ctx context.Context, c solana.Client) error {
		var e error
		blockhash, e = c.GetLatestBlockhash(ctx)
		return e
	}, rpcAttempts)
	if err != nil {
		return "", 0, fmt.Errorf("latest blockhash: %w", err)
	}

	unsigned, err := p.service.BuildSwap(ctx, quote, p.signer.PublicKey(), aggregator.PriorityHints{
		PrioritizationFeeLamports: p.priorityFee,
	})
	if err != nil {
		return "", 0, fmt.Errorf("build: %w", err)
	}

	emit(domain.StateAwaitingSignature)
	signed, err := p.signer.Sign(ctx, unsigned)
	if err != nil {
		return "", 0, fmt.Errorf("sign: %w", err)
	}

	emit(domain.StateBroadcasting)
	err = p.pool.ExecuteWithFailover(ctx, func(ctx context.Context, c solana.Client) error {
		var e error
		signature, e = c.SendTransaction(ctx, signed)
		return e
	}, rpcAttempts)
	if err != nil {
		return "", 0, fmt.Errorf("broadcast: %w", err)
	}

	// The transaction is on the wire now. Cancelling mid-confirmation
	// would leave its fate unknown, so the wait runs detached from the
	// caller's cancellation, bounded by blockhash expiry and a ceiling.
	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()

	emit(domain.StateConfirming)
	if err := p.confirm(confirmCtx, signature, blockhash.LastValidBlockHeight); err != nil {
		return "", 0, err
	}

	outRaw, err := quote.OutAmountRaw()
	if err != nil {
		p.logger.Warn("confirmed swap has malformed quoted output",
			zap.String("signature", signature), zap.Error(err))
		return signature, 0, nil
	}
	return signature, float64(outRaw) / math.Pow10(outputDecimals), nil
}

// confirm waits for the signature to reach confirmed commitment. The
// push confirmer is preferred when installed; polling is the fallback
// and the only path otherwise.
func (p *Pipeline) confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	if p.confirmer != nil {
		txErr, err := p.confirmer.WaitForSignature(ctx, signature)
		if err == nil {
			if txErr != nil {
				return &OnChainError{Signature: signature, Detail: txErr}
			}
			return nil
		}
		p.logger.Warn("push confirmation failed, falling back to polling",
			zap.String("signature", signature), zap.Error(err))
	}

	ticker := time.NewTicker(p.confirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait: %w", ctx.Err())
		case <-ticker.C:
		}

		var status *solana.SignatureStatus
		err := p.pool.ExecuteWithFailover(ctx, func(ctx context.Context, c solana.Client) error {
			statuses, e := c.GetSignatureStatuses(ctx, []string{signature})
			if e != nil {
				return e
			}
			// A degraded endpoint may answer with an empty value array;
			// treat it like a signature not yet known to the cluster.
			if len(statuses) > 0 {
				status = statuses[0]
			}
			return nil
		}, rpcAttempts)
		if err != nil {
			return fmt.Errorf("signature status: %w", err)
		}

		if status.Confirmed() {
			if status.Err != nil {
				return &OnChainError{Signature: signature, Detail: status.Err}
			}
			return nil
		}

		// Unknown or unconfirmed: check whether the blockhash can still
		// land before polling again.
		var height uint64
		err = p.pool.ExecuteWithFailover(ctx, func(ctx context.Context, c solana.Client) error {
			var e error
			height, e = c.GetBlockHeight(ctx)
			return e
		}, rpcAttempts)
		if err != nil {
			return fmt.Errorf("block height: %w", err)
		}
		if height > lastValidBlockHeight {
			return fmt.Errorf("%w: height %d past %d", ErrExpired, height, lastValidBlockHeight)
		}
	}
}

// retryable classifies attempt errors. Declined signatures and zero
// amounts are permanent; everything else gets a fresh quote.
func retryable(err error) bool {
	switch {
	case errors.Is(err, signing.ErrDeclined):
		return false
	case errors.Is(err, ErrInvalidAmount):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
