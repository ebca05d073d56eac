package pubkey

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// MaxSeedLen is the longest seed accepted by CreateWithSeed and by each
// PDA seed component.
const MaxSeedLen = 32

var ErrSeedTooLong = errors.New("pubkey: seed exceeds maximum length")

// CreateWithSeed deterministically derives an address from a base key, a
// textual seed and the owning program.
//
// The derivation is sha256(base || seed || owner). Any party knowing the
// three inputs can recompute the address; only the base key's holder can
// authorize account creation at it.
func CreateWithSeed(base PublicKey, seed string, owner PublicKey) (PublicKey, error) {
	if len(seed) > MaxSeedLen {
		return Zero, fmt.Errorf("%w: %d > %d", ErrSeedTooLong, len(seed), MaxSeedLen)
	}
	h := sha256.New()
	_, _ = h.Write(base[:])
	_, _ = h.Write([]byte(seed))
	_, _ = h.Write(owner[:])
	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	return pk, nil
}

// ProgramID derives a stable program identifier from a human-readable
// name. Native programs without a well-known address use this.
func ProgramID(name string) PublicKey {
	sum := sha256.Sum256([]byte("minisol-program:" + name))
	var pk PublicKey
	copy(pk[:], sum[:])
	return pk
}
