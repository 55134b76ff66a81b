package balances

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/solana"
)

// fakeRPC implements solana.Client for fetcher tests.
type fakeRPC struct {
	lamports    uint64
	accounts    []solana.TokenAccount
	balanceErr  error
	accountsErr error
}

func (f *fakeRPC) Endpoint() string { return "fake" }

func (f *fakeRPC) GetBalance(_ context.Context, _ string) (uint64, error) {
	return f.lamports, f.balanceErr
}

func (f *fakeRPC) GetTokenAccountsByOwner(_ context.Context, _ string) ([]solana.TokenAccount, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeRPC) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRPC) GetBlockHeight(_ context.Context) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeRPC) SendTransaction(_ context.Context, _ string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, _ []string) ([]*solana.SignatureStatus, error) {
	return nil, errors.New("not implemented")
}

func testAddress(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func newTestFetcher(rpc *fakeRPC) *Fetcher {
	pool := solana.NewPoolWithClients([]solana.Client{rpc}, time.Millisecond, nil)
	return NewFetcher(pool, NewRegistry(time.Minute), nil)
}

func TestFetcher_NativeAndTokenBalances(t *testing.T) {
	rpc := &fakeRPC{
		lamports: 2_500_000_000, // 2.5 SOL
		accounts: []solana.TokenAccount{
			{Pubkey: "acct1", Mint: domain.USDCMint, RawAmount: 10_000_000, Decimals: 6, UIAmount: 10},
			{Pubkey: "acct2", Mint: "UnknownMint1111111111111111111111111111111", RawAmount: 42, Decimals: 0, UIAmount: 42},
		},
	}

	holdings, err := newTestFetcher(rpc).FetchBalances(context.Background(), testAddress(t), nil)
	require.NoError(t, err)
	require.Len(t, holdings, 3)

	bySymbol := map[string]domain.TokenHolding{}
	for _, h := range holdings {
		bySymbol[h.Symbol] = h
	}

	sol := bySymbol["SOL"]
	assert.Equal(t, domain.SOLMint, sol.Mint)
	assert.InDelta(t, 2.5, sol.UIAmount, 1e-9)
	assert.Equal(t, uint8(domain.SOLDecimals), sol.Decimals)

	usdc := bySymbol["USDC"]
	assert.Equal(t, "USD Coin", usdc.Name)
	assert.InDelta(t, 10.0, usdc.UIAmount, 1e-9)

	unknown := bySymbol[domain.UnknownSymbol]
	assert.Equal(t, domain.UnknownName, unknown.Name)
	assert.InDelta(t, 42.0, unknown.UIAmount, 1e-9)
}

func TestFetcher_DropsZeroBalances(t *testing.T) {
	rpc := &fakeRPC{
		lamports: 0,
		accounts: []solana.TokenAccount{
			{Pubkey: "acct1", Mint: domain.USDCMint, RawAmount: 0, Decimals: 6, UIAmount: 0},
			{Pubkey: "acct2", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", RawAmount: 5_000_000, Decimals: 6, UIAmount: 5},
		},
	}

	holdings, err := newTestFetcher(rpc).FetchBalances(context.Background(), testAddress(t), nil)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "USDT", holdings[0].Symbol)
}

func TestFetcher_SkipsMalformedRecord(t *testing.T) {
	rpc := &fakeRPC{
		accounts: []solana.TokenAccount{
			{Pubkey: "bad", Mint: "", UIAmount: 3},
			{Pubkey: "good", Mint: domain.USDCMint, RawAmount: 1_000_000, Decimals: 6, UIAmount: 1},
		},
	}

	holdings, err := newTestFetcher(rpc).FetchBalances(context.Background(), testAddress(t), nil)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "USDC", holdings[0].Symbol)
}

func TestFetcher_InvalidAddressIsFatal(t *testing.T) {
	_, err := newTestFetcher(&fakeRPC{}).FetchBalances(context.Background(), "not-an-address", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, solana.ErrInvalidAddress)
}

func TestFetcher_RPCFailureIsFatal(t *testing.T) {
	rpc := &fakeRPC{accountsErr: errors.New("connection refused")}
	_, err := newTestFetcher(rpc).FetchBalances(context.Background(), testAddress(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, solana.ErrNoEndpoints)
}

func TestFetcher_EmitsProgress(t *testing.T) {
	rpc := &fakeRPC{
		lamports: 1_000_000_000,
		accounts: []solana.TokenAccount{
			{Pubkey: "acct1", Mint: domain.USDCMint, RawAmount: 1_000_000, Decimals: 6, UIAmount: 1},
		},
	}

	var events []domain.FetchProgress
	_, err := newTestFetcher(rpc).FetchBalances(context.Background(), testAddress(t), func(p domain.FetchProgress) {
		events = append(events, p)
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Current)
	assert.Equal(t, 2, events[0].Total)
	assert.Equal(t, 2, events[1].Current)
}

func TestRegistry_LookupAndRemember(t *testing.T) {
	r := NewRegistry(time.Minute)

	meta, ok := r.Lookup(domain.SOLMint)
	require.True(t, ok)
	assert.Equal(t, "SOL", meta.Symbol)

	_, ok = r.Lookup("SomeNewMint")
	assert.False(t, ok)

	r.Remember("SomeNewMint", TokenMeta{Symbol: "NEW", Name: "New Token"})
	meta, ok = r.Lookup("SomeNewMint")
	require.True(t, ok)
	assert.Equal(t, "NEW", meta.Symbol)
}
