package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the width of every identity handled by the settlement
// engine. It matches the size of an Ed25519 public key.
const AddressLength = 32

// Address identifies a participant, an asset or a ledger account.
type Address [AddressLength]byte

// ZeroAddress is the empty identity. It is never a valid participant.
var ZeroAddress Address

// BytesToAddress copies b into an Address. Longer inputs keep their trailing
// bytes, shorter inputs are left padded with zeros.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// ParseAddress decodes a hex encoded address with an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != AddressLength*2 {
		return a, fmt.Errorf("address must be %d bytes (got %d hex chars)", AddressLength, len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	copy(a[:], decoded)
	return a, nil
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// Hex renders the address with a 0x prefix.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
