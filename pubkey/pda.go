package pubkey

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// MaxSeeds is the maximum number of seed components in a PDA derivation.
const MaxSeeds = 16

// pdaMarker domain-separates PDA derivations from every other sha256 use
// in the address namespace.
var pdaMarker = []byte("ProgramDerivedAddress")

var (
	ErrTooManySeeds = errors.New("pubkey: too many seeds")
	// ErrInvalidSeeds is returned when a derivation lands on the ed25519
	// curve. On-curve addresses could have a private key, which would break
	// the PDA guarantee that only the owning program can sign for it.
	ErrInvalidSeeds = errors.New("pubkey: seeds produce an on-curve address")
	ErrNoViableBump = errors.New("pubkey: no viable bump seed found")
)

// IsOnCurve reports whether b decompresses to a valid ed25519 curve point.
func IsOnCurve(b []byte) bool {
	if len(b) != Size {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress derives a program address from seeds and a program
// ID. It fails with ErrInvalidSeeds when the result is on-curve; callers
// normally use FindProgramAddress, which searches for an off-curve result.
func CreateProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return Zero, fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Zero, fmt.Errorf("%w: %d > %d", ErrSeedTooLong, len(seed), MaxSeedLen)
		}
		_, _ = h.Write(seed)
	}
	_, _ = h.Write(program[:])
	_, _ = h.Write(pdaMarker)

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	if IsOnCurve(pk[:]) {
		return Zero, ErrInvalidSeeds
	}
	return pk, nil
}

// FindProgramAddress finds the first off-curve program address for the
// given seeds, trying bump bytes from 255 down to 0. It returns the
// address and the winning bump.
//
// The derivation is deterministic: the same seeds and program always yield
// the same address and bump.
func FindProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		trial := make([][]byte, 0, len(seeds)+1)
		trial = append(trial, seeds...)
		trial = append(trial, []byte{uint8(bump)})
		pk, err := CreateProgramAddress(trial, program)
		if err == nil {
			return pk, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}
