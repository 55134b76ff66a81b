// Package balances retrieves fungible-token holdings for wallet addresses
// through the rate-limited endpoint pool.
package balances

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"solana-exit-desk/internal/domain"
)

// TokenMeta is display metadata for one mint.
type TokenMeta struct {
	Symbol  string
	Name    string
	LogoURI string
}

// wellKnownMints covers the assets most portfolios hold; anything else is
// resolved from the runtime cache or falls back to the unknown sentinel.
var wellKnownMints = map[string]TokenMeta{
	domain.SOLMint:  {Symbol: "SOL", Name: "Solana"},
	domain.USDCMint: {Symbol: "USDC", Name: "USD Coin"},
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Symbol: "USDT", Name: "USDT"},
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  {Symbol: "mSOL", Name: "Marinade staked SOL"},
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": {Symbol: "stSOL", Name: "Lido Staked SOL"},
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": {Symbol: "BONK", Name: "Bonk"},
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  {Symbol: "JUP", Name: "Jupiter"},
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": {Symbol: "RAY", Name: "Raydium"},
}

// Registry resolves mint addresses to display metadata. Static well-known
// mints are checked first, then a TTL cache of metadata learned at runtime.
// Constructed once and passed by handle; no ambient global state.
type Registry struct {
	cache *gocache.Cache
}

// NewRegistry creates a registry whose learned entries expire after ttl.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registry{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// Lookup resolves a mint. The second return is false when the mint is
// unknown; callers substitute the sentinel symbol/name rather than failing.
func (r *Registry) Lookup(mint string) (TokenMeta, bool) {
	if meta, ok := wellKnownMints[mint]; ok {
		return meta, true
	}
	if v, ok := r.cache.Get(mint); ok {
		return v.(TokenMeta), true
	}
	return TokenMeta{}, false
}

// Remember stores runtime-learned metadata for a mint.
func (r *Registry) Remember(mint string, meta TokenMeta) {
	if meta.Symbol == "" {
		return
	}
	r.cache.SetDefault(mint, meta)
}
