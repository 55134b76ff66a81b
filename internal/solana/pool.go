package solana

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-exit-desk/internal/observability"
	"solana-exit-desk/internal/ratelimit"
)

// defaultEndpoints is the built-in public set used when no endpoints are
// configured. Degraded mode: public endpoints throttle aggressively, but
// the dashboard stays partially usable without operator-provided RPCs.
var defaultEndpoints = []string{
	"https://api.mainnet-beta.solana.com",
	"https://rpc.ankr.com/solana",
	"https://solana-rpc.publicnode.com",
}

// DefaultEndpointInterval is the minimum spacing between calls to one
// endpoint when the config does not override it.
const DefaultEndpointInterval = 200 * time.Millisecond

// Operation is one unit of work executed against a single endpoint.
type Operation func(ctx context.Context, client Client) error

// endpoint pairs a client with its own rate limiter. Pool ownership is
// exclusive; endpoints are never shared across pools.
type endpoint struct {
	client  Client
	limiter *ratelimit.Limiter
}

// Pool is a round-robin set of interchangeable RPC endpoints with
// per-endpoint rate limiting and failover. Mutated only by the sequential
// caller that owns it; concurrent analyses need independent pools.
type Pool struct {
	endpoints []*endpoint
	next      int
	logger    *zap.Logger
}

// NewPool builds a pool over the given endpoint URLs. An empty list falls
// back to the built-in public defaults with a logged warning.
func NewPool(urls []string, interval time.Duration, logger *zap.Logger, opts ...ClientOption) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(urls) == 0 {
		logger.Warn("no RPC endpoints configured, falling back to public defaults",
			zap.Strings("defaults", defaultEndpoints))
		urls = defaultEndpoints
	}
	if interval <= 0 {
		interval = DefaultEndpointInterval
	}

	clients := make([]Client, len(urls))
	for i, u := range urls {
		clients[i] = NewHTTPClient(u, opts...)
	}
	return NewPoolWithClients(clients, interval, logger)
}

// NewPoolWithClients builds a pool over pre-constructed clients. Used by
// tests and by callers that need custom transport wiring.
func NewPoolWithClients(clients []Client, interval time.Duration, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoints := make([]*endpoint, len(clients))
	for i, c := range clients {
		endpoints[i] = &endpoint{
			client:  c,
			limiter: ratelimit.New(interval),
		}
	}
	return &Pool{
		endpoints: endpoints,
		logger:    logger.Named("endpoint_pool"),
	}
}

// Size returns the number of endpoints in the pool.
func (p *Pool) Size() int {
	return len(p.endpoints)
}

// rotate selects the next endpoint by round-robin, wrapping.
func (p *Pool) rotate() *endpoint {
	e := p.endpoints[p.next%len(p.endpoints)]
	p.next++
	return e
}

// ExecuteWithFailover runs op against the pool. Each attempt selects the
// next endpoint, waits on its rate limiter, then invokes op. Auth and
// rate-limit class errors rotate to the next endpoint immediately without
// consuming an attempt; any other error consumes one. After maxAttempts
// failures the last underlying error is returned wrapped in ErrNoEndpoints.
//
// A full lap of rotatable errors across every endpoint also consumes one
// attempt, so a cluster-wide throttle cannot spin forever.
func (p *Pool) ExecuteWithFailover(ctx context.Context, op Operation, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	rotations := 0

	for attempts := 0; attempts < maxAttempts; {
		if err := ctx.Err(); err != nil {
			return err
		}

		e := p.rotate()
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		err := op(ctx, e.client)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsRotatable(err) {
			p.logger.Warn("endpoint throttled or rejected auth, rotating",
				zap.String("endpoint", e.client.Endpoint()),
				zap.Error(err))
			observability.RecordFailover()
			rotations++
			if rotations >= len(p.endpoints) {
				rotations = 0
				attempts++
			}
			continue
		}

		p.logger.Warn("endpoint call failed",
			zap.String("endpoint", e.client.Endpoint()),
			zap.Int("attempt", attempts+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		rotations = 0
		attempts++
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrNoEndpoints, maxAttempts, lastErr)
}
