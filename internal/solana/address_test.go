package solana

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func TestValidateAddress_AcceptsEd25519PublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	address := base58.Encode(pub)
	if err := ValidateAddress(address); err != nil {
		t.Errorf("expected generated key to validate, got %v", err)
	}
}

func TestValidateAddress_RejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		address string
	}{
		{"empty", ""},
		{"not base58", "0OIl+/not-base58"},
		{"too short", "abc"},
		{"too long", base58.Encode(make([]byte, 64))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAddress(tc.address)
			if !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("expected ErrInvalidAddress for %q, got %v", tc.address, err)
			}
		})
	}
}
