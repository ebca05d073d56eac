package pubkey

import (
	"errors"
	"testing"
)

func TestBase58RoundTrip(t *testing.T) {
	var pk PublicKey
	for i := range pk {
		pk[i] = byte(i)
	}
	got, err := FromBase58(pk.String())
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}
	if got != pk {
		t.Fatalf("round trip mismatch: %s vs %s", got, pk)
	}
}

func TestSystemProgramAddressIsZero(t *testing.T) {
	pk, err := FromBase58("11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("FromBase58: %v", err)
	}
	if !pk.IsZero() {
		t.Fatalf("expected the system program address to decode to all zeros")
	}
}

func TestFromBytesRejectsBadLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 31)); !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
}

func TestCreateWithSeedDeterministic(t *testing.T) {
	base := MustFromBase58("11111111111111111111111111111111")
	owner := ProgramID("calculator")

	a, err := CreateWithSeed(base, "calculator_program_seed", owner)
	if err != nil {
		t.Fatalf("CreateWithSeed: %v", err)
	}
	b, err := CreateWithSeed(base, "calculator_program_seed", owner)
	if err != nil {
		t.Fatalf("CreateWithSeed: %v", err)
	}
	if a != b {
		t.Fatalf("expected deterministic derivation")
	}

	c, err := CreateWithSeed(base, "other_seed", owner)
	if err != nil {
		t.Fatalf("CreateWithSeed: %v", err)
	}
	if a == c {
		t.Fatalf("expected different seeds to derive different addresses")
	}
}

func TestCreateWithSeedRejectsLongSeed(t *testing.T) {
	seed := make([]byte, MaxSeedLen+1)
	_, err := CreateWithSeed(Zero, string(seed), Zero)
	if !errors.Is(err, ErrSeedTooLong) {
		t.Fatalf("expected ErrSeedTooLong, got %v", err)
	}
}

func TestFindProgramAddressOffCurve(t *testing.T) {
	program := ProgramID("escrow")
	pda, bump, err := FindProgramAddress([][]byte{[]byte("escrow")}, program)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if IsOnCurve(pda[:]) {
		t.Fatalf("PDA must be off-curve")
	}

	// Recomputing with the returned bump must reproduce the address.
	again, err := CreateProgramAddress([][]byte{[]byte("escrow"), {bump}}, program)
	if err != nil {
		t.Fatalf("CreateProgramAddress: %v", err)
	}
	if again != pda {
		t.Fatalf("bump recomputation mismatch")
	}
}

func TestFindProgramAddressVariesByProgram(t *testing.T) {
	seeds := [][]byte{[]byte("escrow")}
	a, _, err := FindProgramAddress(seeds, ProgramID("escrow"))
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	b, _, err := FindProgramAddress(seeds, ProgramID("calculator"))
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if a == b {
		t.Fatalf("expected program-distinct derivations")
	}
}

func TestCreateProgramAddressRejectsTooManySeeds(t *testing.T) {
	seeds := make([][]byte, MaxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	if _, err := CreateProgramAddress(seeds, Zero); !errors.Is(err, ErrTooManySeeds) {
		t.Fatalf("expected ErrTooManySeeds, got %v", err)
	}
}
