package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// signatureLen is the fixed size of an ed25519 transaction signature.
const signatureLen = 64

// LocalSigner signs with an in-process ed25519 key. Used for unattended
// runs; interactive wallets implement Signer separately.
type LocalSigner struct {
	key    ed25519.PrivateKey
	pubkey string
}

// NewLocalSigner wraps an ed25519 private key.
func NewLocalSigner(key ed25519.PrivateKey) (*LocalSigner, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	pub := key.Public().(ed25519.PublicKey)
	return &LocalSigner{
		key:    key,
		pubkey: base58.Encode(pub),
	}, nil
}

// NewLocalSignerFromBase58 parses a base58-encoded 64-byte keypair, the
// format solana-keygen and most wallet exports use.
func NewLocalSignerFromBase58(encoded string) (*LocalSigner, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode keypair: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return NewLocalSigner(ed25519.PrivateKey(raw))
}

// PublicKey returns the signer's base58 address.
func (s *LocalSigner) PublicKey() string {
	return s.pubkey
}

// Sign fills the fee-payer signature slot of the serialized transaction.
// Wire layout: compact-u16 signature count, count*64 signature bytes,
// then the message; the fee payer owns slot 0 and the signature covers
// the message bytes only.
func (s *LocalSigner) Sign(ctx context.Context, unsignedTxBase64 string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tx, err := base64.StdEncoding.DecodeString(unsignedTxBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	sigCount, headerLen, err := decodeCompactU16(tx)
	if err != nil {
		return "", fmt.Errorf("parse signature count: %w", err)
	}
	if sigCount == 0 {
		return "", fmt.Errorf("transaction reserves no signature slots")
	}

	msgOffset := headerLen + sigCount*signatureLen
	if msgOffset >= len(tx) {
		return "", fmt.Errorf("transaction truncated: %d bytes, message expected at %d", len(tx), msgOffset)
	}

	sig := ed25519.Sign(s.key, tx[msgOffset:])
	copy(tx[headerLen:headerLen+signatureLen], sig)

	return base64.StdEncoding.EncodeToString(tx), nil
}

// decodeCompactU16 reads the shortvec length prefix used in the
// transaction wire format. Returns the value and the number of prefix
// bytes consumed.
func decodeCompactU16(b []byte) (int, int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("unexpected end of input")
		}
		elem := uint(b[i])
		value |= (elem & 0x7f) << shift
		if elem&0x80 == 0 {
			if value > 0xffff {
				return 0, 0, fmt.Errorf("value exceeds u16")
			}
			return int(value), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("prefix longer than 3 bytes")
}
