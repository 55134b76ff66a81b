package swap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-exit-desk/internal/aggregator"
	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/signing"
	"solana-exit-desk/internal/solana"
)

// fakeAggregator routes quote and build calls through test-supplied
// functions and counts them.
type fakeAggregator struct {
	quoteCalls int
	buildCalls int
	quoteFn    func(req aggregator.QuoteRequest) (*aggregator.Quote, error)
	buildFn    func(quote *aggregator.Quote) (string, error)
}

func (f *fakeAggregator) GetQuote(_ context.Context, req aggregator.QuoteRequest) (*aggregator.Quote, error) {
	f.quoteCalls++
	return f.quoteFn(req)
}

func (f *fakeAggregator) BuildSwap(_ context.Context, quote *aggregator.Quote, _ string, _ aggregator.PriorityHints) (string, error) {
	f.buildCalls++
	if f.buildFn != nil {
		return f.buildFn(quote)
	}
	return "dW5zaWduZWQ=", nil
}

// fakeSigner signs by prefixing, or fails with a fixed error.
type fakeSigner struct {
	err   error
	calls int
}

func (f *fakeSigner) PublicKey() string { return "payer" }

func (f *fakeSigner) Sign(_ context.Context, tx string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "signed:" + tx, nil
}

// fakeRPC is a scriptable Client for the pipeline's pool.
type fakeRPC struct {
	height     uint64
	sent       []string
	sendErr    error
	statusFn   func(sig string) *solana.SignatureStatus
	statusesFn func(sigs []string) ([]*solana.SignatureStatus, error)
}

func (f *fakeRPC) Endpoint() string { return "fake://rpc" }

func (f *fakeRPC) GetBalance(context.Context, string) (uint64, error) { return 0, nil }

func (f *fakeRPC) GetTokenAccountsByOwner(context.Context, string) ([]solana.TokenAccount, error) {
	return nil, nil
}

func (f *fakeRPC) GetLatestBlockhash(context.Context) (*solana.LatestBlockhash, error) {
	return &solana.LatestBlockhash{Blockhash: "hash", LastValidBlockHeight: 100}, nil
}

func (f *fakeRPC) GetBlockHeight(context.Context) (uint64, error) { return f.height, nil }

func (f *fakeRPC) SendTransaction(_ context.Context, signed string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, signed)
	return "sig123", nil
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, sigs []string) ([]*solana.SignatureStatus, error) {
	if f.statusesFn != nil {
		return f.statusesFn(sigs)
	}
	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, s := range sigs {
		if f.statusFn != nil {
			statuses[i] = f.statusFn(s)
		}
	}
	return statuses, nil
}

func confirmedStatus(string) *solana.SignatureStatus {
	return &solana.SignatureStatus{ConfirmationStatus: "confirmed"}
}

func quoteFor(req aggregator.QuoteRequest, outAmount string) *aggregator.Quote {
	return &aggregator.Quote{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   "1000000",
		OutAmount:  outAmount,
	}
}

func allocated(mint, symbol string, uiAmount float64) domain.AllocatedToken {
	return domain.AllocatedToken{
		TokenHolding: domain.TokenHolding{Mint: mint, Symbol: symbol, Decimals: 6, UIAmount: uiAmount},
		SwapAmount:   uiAmount,
	}
}

func newTestPipeline(svc aggregator.Service, signer signing.Signer, rpc solana.Client, opts ...Option) *Pipeline {
	pool := solana.NewPoolWithClients([]solana.Client{rpc}, time.Millisecond, zap.NewNop())
	base := []Option{
		WithInterTokenDelay(time.Millisecond),
		WithConfirmInterval(time.Millisecond),
	}
	return NewPipeline(svc, signer, pool, zap.NewNop(), append(base, opts...)...)
}

func TestExecuteAll_HappyPath(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			return quoteFor(req, "2500000"), nil
		},
	}
	signer := &fakeSigner{}
	rpc := &fakeRPC{height: 50, statusFn: confirmedStatus}
	p := newTestPipeline(svc, signer, rpc)

	var states []domain.SwapState
	results, summary := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 1.0)},
		func(pr domain.SwapProgress) { states = append(states, pr.State) })

	require.Len(t, results, 1)
	r := results[0]
	assert.True(t, r.Succeeded())
	assert.Equal(t, "sig123", r.Signature)
	assert.InDelta(t, 2.5, r.AmountOut, 1e-9) // 2500000 base units of a 6-decimal asset
	assert.Equal(t, 0, r.Attempts)
	assert.NoError(t, r.Err)

	assert.Equal(t, domain.ExecutionSummary{Succeeded: 1, Failed: 0, TotalIn: 1.0, TotalOut: 2.5}, summary)
	assert.Equal(t, []domain.SwapState{
		domain.StateQuoting,
		domain.StateBuilding,
		domain.StateAwaitingSignature,
		domain.StateBroadcasting,
		domain.StateConfirming,
		domain.StateSucceeded,
	}, states)

	require.Len(t, rpc.sent, 1)
	assert.Equal(t, "signed:dW5zaWduZWQ=", rpc.sent[0], "the broadcast blob must be the signed one")
}

func TestExecuteOne_RetriesFromFreshQuote(t *testing.T) {
	calls := 0
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("aggregator hiccup")
			}
			return quoteFor(req, "1000000"), nil
		},
	}
	rpc := &fakeRPC{height: 50, statusFn: confirmedStatus}
	p := newTestPipeline(svc, &fakeSigner{}, rpc)

	results, _ := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 1.0)}, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded())
	assert.Equal(t, 1, results[0].Attempts, "one retry consumed")
	assert.Equal(t, 2, svc.quoteCalls, "every attempt starts from a fresh quote")
}

func TestExecuteOne_AttemptBudgetExhausted(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(aggregator.QuoteRequest) (*aggregator.Quote, error) {
			return nil, errors.New("persistent failure")
		},
	}
	p := newTestPipeline(svc, &fakeSigner{}, &fakeRPC{}, WithMaxAttempts(3))

	results, summary := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 1.0)}, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded())
	assert.Error(t, results[0].Err)
	assert.Equal(t, 2, results[0].Attempts, "two retries after the first attempt")
	assert.Equal(t, 3, svc.quoteCalls)
	assert.Equal(t, 1, summary.Failed)
}

func TestExecuteOne_DeclinedSignatureIsNotRetried(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			return quoteFor(req, "1000000"), nil
		},
	}
	signer := &fakeSigner{err: signing.ErrDeclined}
	p := newTestPipeline(svc, signer, &fakeRPC{})

	var states []domain.SwapState
	results, _ := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 1.0)},
		func(pr domain.SwapProgress) { states = append(states, pr.State) })

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, signing.ErrDeclined)
	assert.Equal(t, 0, results[0].Attempts, "a declined signature consumes no retries")
	assert.Equal(t, 1, signer.calls)
	assert.Equal(t, domain.StateFailed, states[len(states)-1])
}

func TestExecuteOne_ZeroAmountFailsWithoutNetwork(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(aggregator.QuoteRequest) (*aggregator.Quote, error) {
			t.Fatal("quote must not be called for a zero amount")
			return nil, nil
		},
	}
	p := newTestPipeline(svc, &fakeSigner{}, &fakeRPC{})

	results, _ := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 0)}, nil)

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrInvalidAmount)
	assert.Equal(t, 0, results[0].Attempts)
	assert.Equal(t, 0, svc.quoteCalls)
}

func TestExecuteOne_OnChainFailureSurfaces(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			return quoteFor(req, "1000000"), nil
		},
	}
	rpc := &fakeRPC{
		height: 50,
		statusFn: func(string) *solana.SignatureStatus {
			return &solana.SignatureStatus{
				ConfirmationStatus: "confirmed",
				Err:                map[string]interface{}{"InstructionError": []interface{}{}},
			}
		},
	}
	p := newTestPipeline(svc, &fakeSigner{}, rpc, WithMaxAttempts(1))

	results, _ := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 1.0)}, nil)

	require.Len(t, results, 1)
	var onChain *OnChainError
	require.ErrorAs(t, results[0].Err, &onChain)
	assert.Equal(t, "sig123", onChain.Signature)
	assert.Empty(t, results[0].Signature, "a failed result carries no signature")
}

func TestExecuteOne_ExpiredBlockhashRetries(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			return quoteFor(req, "1000000"), nil
		},
	}
	// Status never resolves and the height is already past the blockhash
	// expiry (100), so every attempt ends in ErrExpired.
	rpc := &fakeRPC{height: 200}

	p := newTestPipeline(svc, &fakeSigner{}, rpc, WithMaxAttempts(2))
	results, _ := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 1.0)}, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded())
	assert.ErrorIs(t, results[0].Err, ErrExpired)
	assert.Equal(t, 2, svc.quoteCalls, "expiry must trigger a fresh quote on retry")
	assert.Len(t, rpc.sent, 2, "each attempt broadcasts once")
}

func TestExecuteOne_EmptyStatusResponseIsNotConfirmation(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			return quoteFor(req, "1000000"), nil
		},
	}
	// Some endpoints answer getSignatureStatuses with an empty value
	// array when degraded. That must read as "not yet known", and with
	// the height already past expiry the attempt ends in ErrExpired
	// instead of crashing the run.
	rpc := &fakeRPC{
		height: 200,
		statusesFn: func([]string) ([]*solana.SignatureStatus, error) {
			return []*solana.SignatureStatus{}, nil
		},
	}
	p := newTestPipeline(svc, &fakeSigner{}, rpc, WithMaxAttempts(1))

	results, summary := p.ExecuteAll(context.Background(),
		[]domain.AllocatedToken{allocated("mintA", "AAA", 1.0)}, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded())
	assert.ErrorIs(t, results[0].Err, ErrExpired)
	assert.Equal(t, 1, summary.Failed)
}

func TestExecuteAll_PartialFailureIsolation(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			if req.InputMint == "bad" {
				return nil, errors.New("no liquidity today")
			}
			return quoteFor(req, "1000000"), nil
		},
	}
	rpc := &fakeRPC{height: 50, statusFn: confirmedStatus}
	p := newTestPipeline(svc, &fakeSigner{}, rpc, WithMaxAttempts(1))

	results, summary := p.ExecuteAll(context.Background(), []domain.AllocatedToken{
		allocated("bad", "BAD", 1.0),
		allocated("good", "GOOD", 2.0),
	}, nil)

	require.Len(t, results, 2)
	assert.False(t, results[0].Succeeded())
	assert.True(t, results[1].Succeeded())
	assert.Equal(t, domain.ExecutionSummary{Succeeded: 1, Failed: 1, TotalIn: 2.0, TotalOut: 1.0}, summary)
}

func TestRetryFailed_OnlyReexecutesFailedSubset(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(req aggregator.QuoteRequest) (*aggregator.Quote, error) {
			return quoteFor(req, "1000000"), nil
		},
	}
	rpc := &fakeRPC{height: 50, statusFn: confirmedStatus}
	p := newTestPipeline(svc, &fakeSigner{}, rpc)

	tokens := []domain.AllocatedToken{
		allocated("won", "WON", 1.0),
		allocated("lost", "LST", 2.0),
	}
	prior := []domain.SwapResult{
		{Mint: "won", Symbol: "WON", Signature: "sig0"},
		{Mint: "lost", Symbol: "LST", Err: errors.New("earlier failure")},
	}

	results, summary := p.RetryFailed(context.Background(), tokens, prior, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "lost", results[0].Mint)
	assert.True(t, results[0].Succeeded())
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, svc.quoteCalls, "the already-succeeded token must not be re-quoted")
}

func TestExecuteAll_CancelledContextFailsRemaining(t *testing.T) {
	svc := &fakeAggregator{
		quoteFn: func(aggregator.QuoteRequest) (*aggregator.Quote, error) {
			t.Fatal("no network calls after cancellation")
			return nil, nil
		},
	}
	p := newTestPipeline(svc, &fakeSigner{}, &fakeRPC{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, summary := p.ExecuteAll(ctx, []domain.AllocatedToken{
		allocated("a", "A", 1.0),
		allocated("b", "B", 1.0),
	}, nil)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, 2, summary.Failed)
}
