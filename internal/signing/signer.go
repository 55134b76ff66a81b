// Package signing produces signed Solana transactions from the unsigned
// blobs the aggregator builds. The pipeline only sees the Signer
// interface; the concrete implementation may be a local key or an
// external wallet bridge.
package signing

import (
	"context"
	"errors"
)

// ErrDeclined is returned when the key holder rejects the transaction.
// Terminal: the pipeline must not retry a declined signature.
var ErrDeclined = errors.New("signature declined")

// ErrTimeout is returned when the signer does not respond in time.
var ErrTimeout = errors.New("signer timed out")

// ErrUnavailable is returned when no signer is reachable at all.
var ErrUnavailable = errors.New("signer unavailable")

// Signer signs a serialized unsigned transaction.
type Signer interface {
	// PublicKey returns the base58 fee-payer address the signer signs for.
	PublicKey() string

	// Sign takes a base64-encoded unsigned transaction and returns the
	// same transaction, base64 encoded, with the fee-payer signature
	// filled in. Errors are one of ErrDeclined, ErrTimeout,
	// ErrUnavailable, or a malformed-input error.
	Sign(ctx context.Context, unsignedTxBase64 string) (string, error)
}
