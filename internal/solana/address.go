package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that an address is a well-formed wallet public
// key: base58, 32 bytes, and a valid point on the ed25519 curve. Program
// derived addresses are deliberately rejected; balances are fetched for
// user wallets only.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %s: not base58", ErrInvalidAddress, address)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: %s: expected 32 bytes, got %d", ErrInvalidAddress, address, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: %s: not on curve", ErrInvalidAddress, address)
	}
	return nil
}
