package pubkey

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size is the byte length of a public key.
const Size = 32

// PublicKey is a 32-byte ed25519 public key, or any 32-byte address that
// occupies the same namespace (program IDs, seed-derived addresses, PDAs).
//
// The canonical text form is base58, matching the wallet and explorer
// conventions the rest of the module follows.
type PublicKey [Size]byte

// Zero is the all-zero public key.
var Zero PublicKey

var (
	ErrBadLength = errors.New("pubkey: must be 32 bytes")
	ErrBadBase58 = errors.New("pubkey: invalid base58")
)

// FromBytes copies b into a PublicKey.
func FromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != Size {
		return pk, fmt.Errorf("%w, got %d", ErrBadLength, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// FromBase58 decodes the canonical text form.
func FromBase58(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrBadBase58, err)
	}
	return FromBytes(b)
}

// MustFromBase58 is FromBase58 that panics on error.
// Intended for package-level well-known addresses.
func MustFromBase58(s string) PublicKey {
	pk, err := FromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// FromEd25519 converts a crypto/ed25519 public key.
func FromEd25519(pub ed25519.PublicKey) (PublicKey, error) {
	return FromBytes(pub)
}

func (p PublicKey) String() string { return base58.Encode(p[:]) }

func (p PublicKey) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, p[:])
	return b
}

func (p PublicKey) IsZero() bool { return p == Zero }

func (p PublicKey) Equals(q PublicKey) bool { return p == q }

// Less provides a stable ordering for deterministic iteration.
func (p PublicKey) Less(q PublicKey) bool { return bytes.Compare(p[:], q[:]) < 0 }

// MarshalText implements encoding.TextMarshaler (base58).
func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(text []byte) error {
	pk, err := FromBase58(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
