// Package ledger implements a single-writer account ledger that hosts
// programs. Every submitted instruction runs inside one store transaction:
// either all of its balance movements and account writes commit, or none do.
//
// Addresses are 33-byte compressed secp256k1 public keys. Program-derived
// addresses are built so that they never decode to a valid curve point, so
// no private key can exist for them and only the owning program may move
// their funds.
package ledger

import (
	"crypto/sha256"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/mr-tron/base58"
)

// AddressSize is the length of an address in bytes.
const AddressSize = 33

// Address identifies an account on the ledger.
type Address [AddressSize]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// AddressFromPublicKey returns the address of a secp256k1 public key.
func AddressFromPublicKey(pub *ec.PublicKey) Address {
	var a Address
	copy(a[:], pub.Compressed())
	return a
}

// AddressFromBytes copies a 33-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddress decodes the base58 text form of an address.
func ParseAddress(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return ZeroAddress, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return AddressFromBytes(b)
}

// ProgramID derives the identity of a named program. It is a plain hash with
// no key behind it.
func ProgramID(name string) Address {
	h := sha256.Sum256([]byte("program:" + name))
	var a Address
	a[0] = 0x03
	copy(a[1:], h[:])
	return a
}

// IsZero reports whether a is the null identity.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// String returns the base58 form.
func (a Address) String() string { return base58.Encode(a[:]) }

// PublicKey parses the address as a secp256k1 public key.
func (a Address) PublicKey() (*ec.PublicKey, error) {
	pub, err := ec.PublicKeyFromBytes(a[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return pub, nil
}

// IsOnCurve reports whether the address decodes to a valid public key.
func (a Address) IsOnCurve() bool {
	_, err := ec.PublicKeyFromBytes(a[:])
	return err == nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
