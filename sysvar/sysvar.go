// Package sysvar defines the ledger-maintained accounts programs read for
// cluster parameters: rent pricing and the current slot. The ledger writes
// them at genesis and on each commit; programs receive them as ordinary
// read-only accounts.
package sysvar

import (
	"encoding/binary"

	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

// OwnerID owns every sysvar account.
var OwnerID = pubkey.MustFromBase58("Sysvar1111111111111111111111111111111111111")

// RentID is the rent sysvar address.
var RentID = pubkey.MustFromBase58("SysvarRent111111111111111111111111111111111")

// ClockID is the clock sysvar address.
var ClockID = pubkey.MustFromBase58("SysvarC1ock11111111111111111111111111111111")

// Rent holds the rent pricing parameters.
type Rent struct {
	// LamportsPerByteYear prices one byte of account data for one year.
	LamportsPerByteYear uint64
	// ExemptionYears is how many years of rent an account must hold to be
	// exempt from collection.
	ExemptionYears uint64
}

// accountStorageOverhead is the constant per-account byte overhead charged
// on top of the data length.
const accountStorageOverhead = 128

// DefaultRent matches the validator defaults the lessons assume.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}
}

// MinimumBalance returns the lamports an account with dataLen bytes of
// data must hold to be rent-exempt.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	return (accountStorageOverhead + dataLen) * r.LamportsPerByteYear * r.ExemptionYears
}

// IsExempt reports whether balance covers the exemption minimum for
// dataLen bytes.
func (r Rent) IsExempt(balance, dataLen uint64) bool {
	return balance >= r.MinimumBalance(dataLen)
}

const rentDataLen = 16

// Encode renders the rent sysvar account data.
func (r Rent) Encode() []byte {
	data := make([]byte, rentDataLen)
	binary.LittleEndian.PutUint64(data[0:8], r.LamportsPerByteYear)
	binary.LittleEndian.PutUint64(data[8:16], r.ExemptionYears)
	return data
}

// DecodeRent parses rent sysvar account data.
func DecodeRent(data []byte) (Rent, error) {
	if len(data) != rentDataLen {
		return Rent{}, runtime.NewError(runtime.KindDecode, "SYSVAR-DEC-001", "malformed rent sysvar data")
	}
	return Rent{
		LamportsPerByteYear: binary.LittleEndian.Uint64(data[0:8]),
		ExemptionYears:      binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}

// RentFromAccount reads the rent sysvar out of an instruction account,
// verifying the address.
func RentFromAccount(v *runtime.AccountView) (Rent, error) {
	if v.Key != RentID {
		return Rent{}, runtime.NewError(runtime.KindState, "SYSVAR-STATE-001", "account is not the rent sysvar")
	}
	return DecodeRent(v.Data())
}

// Clock holds the ledger's notion of time: the slot counter.
type Clock struct {
	Slot uint64
}

const clockDataLen = 8

// Encode renders the clock sysvar account data.
func (c Clock) Encode() []byte {
	data := make([]byte, clockDataLen)
	binary.LittleEndian.PutUint64(data, c.Slot)
	return data
}

// DecodeClock parses clock sysvar account data.
func DecodeClock(data []byte) (Clock, error) {
	if len(data) != clockDataLen {
		return Clock{}, runtime.NewError(runtime.KindDecode, "SYSVAR-DEC-002", "malformed clock sysvar data")
	}
	return Clock{Slot: binary.LittleEndian.Uint64(data)}, nil
}
