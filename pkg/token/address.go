package token

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the length of a ledger address in bytes.
const AddressLength = 20

// Address identifies an account on the ledger. Addresses are opaque
// fixed-width identifiers rendered as 0x-prefixed hex.
type Address [AddressLength]byte

// ZeroAddress is the reserved null address. It appears as the source of
// mint events and the destination of burn events; transfers to or from it
// are rejected.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != AddressLength*2 {
		return a, fmt.Errorf("invalid address %q: expected %d hex characters", s, AddressLength*2)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress parses a 0x-prefixed hex address and panics on failure.
// Intended for tests and fixed constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
