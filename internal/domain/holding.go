package domain

// Well-known mint addresses on Solana mainnet.
const (
	// SOLMint is the wrapped-SOL mint, used as the identifier for the
	// native balance holding.
	SOLMint = "So11111111111111111111111111111111111111112"

	// USDCMint is the stable reference asset. Holdings are valued in USDC
	// and liquidations swap into it by default.
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// SOLDecimals is the fixed decimal precision of the native asset (lamports).
const SOLDecimals = 9

// PriceStatus describes how a holding's price was resolved.
type PriceStatus string

const (
	// PriceUnknown means pricing has not run for this holding yet.
	PriceUnknown PriceStatus = "UNKNOWN"
	// PriceOK means a quote was obtained (or the asset is the stable reference).
	PriceOK PriceStatus = "OK"
	// PriceNoRoute means the quote service reported no swap route; the token
	// is treated as illiquid with zero value.
	PriceNoRoute PriceStatus = "NO_ROUTE"
	// PriceUnavailable means the quote service was unreachable or returned
	// a malformed response; value is zeroed but the token may be retried.
	PriceUnavailable PriceStatus = "UNAVAILABLE"
)

// TokenHolding is one asset balance owned by one wallet address.
// Created by the balance fetcher with zero price/value; the price fetcher
// populates PriceUSD, ValueUSD and PriceStatus in place.
type TokenHolding struct {
	Mint      string      // token mint address (SOLMint for the native balance)
	Symbol    string      // ticker symbol, UnknownSymbol if unrecognized
	Name      string      // display name, UnknownName if unrecognized
	RawAmount uint64      // balance in base units
	Decimals  uint8       // decimal precision of the mint
	UIAmount  float64     // RawAmount scaled by Decimals
	PriceUSD  float64     // unit price, zero until priced
	ValueUSD  float64     // UIAmount * PriceUSD
	Status    PriceStatus // pricing outcome
	LogoURI   string      // optional logo reference
}

// Sentinel metadata for mints the registry does not recognize.
const (
	UnknownSymbol = "UNKNOWN"
	UnknownName   = "Unknown Token"
)
