// Package account defines the ledger's only persistent record: the account.
//
// Every account has a lamport balance, a data buffer, and an owner program.
// The runtime, not this package, enforces the mutation rules; the
// predicates here state them so the runtime and tests share one
// definition:
//
//   - Only the owner program may modify Data or debit Lamports.
//   - Any program may credit Lamports.
//   - Ownership may be reassigned only by the current owner, and only while
//     the account is writable, non-executable, and its data is empty or
//     all-zero.
package account

import "github.com/jacekv/minisol/pubkey"

// Account is one ledger record.
type Account struct {
	// Lamports is the balance. 1 SOL = 1_000_000_000 lamports.
	Lamports uint64
	// Owner is the program with exclusive write access to Data.
	Owner pubkey.PublicKey
	// Data is the program-interpreted state buffer.
	Data []byte
	// Executable marks deployed program accounts; they are immutable.
	Executable bool
	// RentEpoch is retained for wire compatibility; accounts in this
	// ledger are always rent-exempt.
	RentEpoch uint64
}

// New returns an empty account owned by owner with the given balance and
// a zeroed data buffer of size space.
func New(lamports uint64, space uint64, owner pubkey.PublicKey) *Account {
	return &Account{
		Lamports: lamports,
		Owner:    owner,
		Data:     make([]byte, space),
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)
	return &cp
}

// IsZeroed reports whether the data buffer is empty or all zero bytes.
// This is the data-side precondition for ownership reassignment.
func (a *Account) IsZeroed() bool {
	for _, b := range a.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

// DataEquals reports whether two accounts hold identical data buffers.
func (a *Account) DataEquals(b *Account) bool {
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}
