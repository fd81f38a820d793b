package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the width of an ed25519 public key.
const PubkeySize = 32

// Pubkey is a 32-byte account address.
type Pubkey [PubkeySize]byte

// String returns the base58 representation.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether all bytes are zero.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// PubkeyFromBytes copies a 32-byte slice into a Pubkey.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeySize {
		return p, fmt.Errorf("invalid pubkey length: got %d, want %d", len(b), PubkeySize)
	}
	copy(p[:], b)
	return p, nil
}

// TryPubkeyFromBase58 parses a base58 address.
func TryPubkeyFromBase58(s string) (Pubkey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("decode base58 pubkey %q: %w", s, err)
	}
	p, err := PubkeyFromBytes(data)
	if err != nil {
		return Pubkey{}, fmt.Errorf("pubkey %q: %w", s, err)
	}
	return p, nil
}
