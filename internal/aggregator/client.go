// Package aggregator talks to the swap-aggregation service: exchange
// quotes and unsigned transaction builds.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"solana-exit-desk/internal/observability"
)

// DefaultTimeout bounds one aggregator round trip.
const DefaultTimeout = 10 * time.Second

// ErrNoRoute is returned when the aggregator has no swap route for the
// requested pair. A valid terminal outcome for pricing, not a failure.
var ErrNoRoute = errors.New("no route for pair")

// ErrRateLimited is returned on HTTP 429 from the aggregator.
var ErrRateLimited = errors.New("aggregator rate limited")

// QuoteRequest identifies one (input, output, amount) quote.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // base units of the input mint
	SlippageBps int
}

// Quote is a time-bounded exchange-rate snapshot. Valid only for a short
// provider-defined window: re-fetched whenever the consuming step is
// delayed or retried, never reused.
type Quote struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	OtherAmount    string          `json:"otherAmountThreshold"`
	SlippageBps    int             `json:"slippageBps"`
	RoutePlan      json.RawMessage `json:"routePlan"`
	PriceImpactPct json.Number     `json:"priceImpactPct"`
}

// OutAmountRaw parses the quoted output amount in base units.
func (q *Quote) OutAmountRaw() (uint64, error) {
	return strconv.ParseUint(q.OutAmount, 10, 64)
}

// PriorityHints tune transaction inclusion during congestion.
type PriorityHints struct {
	PrioritizationFeeLamports uint64
}

// Service is the aggregator surface consumed by pricing and the swap
// pipeline. Narrow on purpose so tests can fake it.
type Service interface {
	// GetQuote fetches an exchange quote. Returns ErrNoRoute when the pair
	// is not tradable and ErrRateLimited on throttling.
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)

	// BuildSwap submits a quote to the transaction-build endpoint and
	// returns the unsigned transaction, base64 encoded.
	BuildSwap(ctx context.Context, quote *Quote, userPublicKey string, hints PriorityHints) (string, error)
}

// HTTPService implements Service against a Jupiter-shaped HTTP API.
type HTTPService struct {
	client *resty.Client
	logger *zap.Logger
}

// New creates an aggregator client for the given base URL.
func New(baseURL string, logger *zap.Logger) *HTTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json")
	return &HTTPService{
		client: client,
		logger: logger.Named("aggregator"),
	}
}

// GetQuote fetches an exchange quote for req.
func (s *HTTPService) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		observability.RecordQuote(outcome, time.Since(start).Seconds())
	}()

	var quote Quote
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   req.InputMint,
			"outputMint":  req.OutputMint,
			"amount":      strconv.FormatUint(req.Amount, 10),
			"slippageBps": strconv.Itoa(req.SlippageBps),
		}).
		SetResult(&quote).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		outcome = "ok"
		return &quote, nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		outcome = "rate_limited"
		return nil, ErrRateLimited
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		outcome = "no_route"
		// 400-class means the pair has no route; callers absorb it.
		s.logger.Debug("no route for pair",
			zap.String("input", req.InputMint),
			zap.String("output", req.OutputMint),
			zap.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, req.InputMint, req.OutputMint)
	default:
		return nil, fmt.Errorf("quote status %d: %s", resp.StatusCode(), resp.String())
	}
}

// buildSwapResponse is the transaction-build endpoint payload.
type buildSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwap obtains an unsigned transaction for quote. The aggregator
// embeds a reference blockhash fetched at build time, so the returned blob
// is only briefly broadcastable.
func (s *HTTPService) BuildSwap(ctx context.Context, quote *Quote, userPublicKey string, hints PriorityHints) (string, error) {
	body := map[string]interface{}{
		"quoteResponse":             quote,
		"userPublicKey":             userPublicKey,
		"wrapAndUnwrapSol":          true,
		"prioritizationFeeLamports": hints.PrioritizationFeeLamports,
	}

	var built buildSwapResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&built).
		Post("/swap")
	if err != nil {
		return "", fmt.Errorf("build swap request: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		if built.SwapTransaction == "" {
			return "", fmt.Errorf("build swap: empty transaction in response")
		}
		return built.SwapTransaction, nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		return "", ErrRateLimited
	default:
		return "", fmt.Errorf("build swap status %d: %s", resp.StatusCode(), resp.String())
	}
}
