package token

import (
	"encoding/binary"
	"fmt"

	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

// Account layouts. All integers are little-endian; a trailing flag byte
// marks initialization so a zeroed buffer is never a valid record.

// MintLen is the mint account data size.
const MintLen = 32 + 8 + 1 + 1

// Mint is the per-token issuance record.
type Mint struct {
	// Authority may mint new supply and reassign itself.
	Authority   pubkey.PublicKey
	Supply      uint64
	Decimals    uint8
	Initialized bool
}

// EncodeMint renders the mint account layout.
func (m Mint) EncodeMint() []byte {
	data := make([]byte, MintLen)
	copy(data[0:32], m.Authority[:])
	binary.LittleEndian.PutUint64(data[32:40], m.Supply)
	data[40] = m.Decimals
	if m.Initialized {
		data[41] = 1
	}
	return data
}

// DecodeMint parses the mint account layout.
func DecodeMint(data []byte) (Mint, error) {
	if len(data) != MintLen {
		return Mint{}, runtime.NewError(runtime.KindDecode, "TOK-DEC-001",
			fmt.Sprintf("mint state must be %d bytes, got %d", MintLen, len(data)))
	}
	authority, _ := pubkey.FromBytes(data[0:32])
	return Mint{
		Authority:   authority,
		Supply:      binary.LittleEndian.Uint64(data[32:40]),
		Decimals:    data[40],
		Initialized: data[41] != 0,
	}, nil
}

// AccountLen is the token holding account data size.
const AccountLen = 32 + 32 + 8 + 1

// Account is a token holding record. Its Authority is the user-space
// owner of the balance; the runtime-level account owner is always the
// token program itself.
type Account struct {
	Mint        pubkey.PublicKey
	Authority   pubkey.PublicKey
	Amount      uint64
	Initialized bool
}

// EncodeAccount renders the token account layout.
func (a Account) EncodeAccount() []byte {
	data := make([]byte, AccountLen)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Authority[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	if a.Initialized {
		data[72] = 1
	}
	return data
}

// DecodeAccount parses the token account layout.
func DecodeAccount(data []byte) (Account, error) {
	if len(data) != AccountLen {
		return Account{}, runtime.NewError(runtime.KindDecode, "TOK-DEC-002",
			fmt.Sprintf("token account state must be %d bytes, got %d", AccountLen, len(data)))
	}
	mint, _ := pubkey.FromBytes(data[0:32])
	authority, _ := pubkey.FromBytes(data[32:64])
	return Account{
		Mint:        mint,
		Authority:   authority,
		Amount:      binary.LittleEndian.Uint64(data[64:72]),
		Initialized: data[72] != 0,
	}, nil
}
