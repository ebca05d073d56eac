package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jacekv/minisol/account"
	"github.com/jacekv/minisol/ledger"
	"github.com/jacekv/minisol/pubkey"
)

// formatVersion tags the snapshot block encoding.
const formatVersion = 1

// EncodeState renders a ledger state export as one deterministic block.
// ExportState already sorts accounts by address, so encoding the same
// state twice yields identical bytes and therefore the same CID.
//
// Layout (little-endian):
//
//	u8  version
//	u64 slot
//	32B blockhash
//	u32 account count, then per account:
//	  32B address
//	  u32 encoded length + account encoding
func EncodeState(st ledger.State) []byte {
	var buf bytes.Buffer
	buf.WriteByte(formatVersion)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], st.Slot)
	buf.Write(u64[:])
	buf.Write(st.Blockhash[:])

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(st.Accounts)))
	buf.Write(u32[:])
	for _, rec := range st.Accounts {
		buf.Write(rec.Key[:])
		encoded := rec.Account.Encode()
		binary.LittleEndian.PutUint32(u32[:], uint32(len(encoded)))
		buf.Write(u32[:])
		buf.Write(encoded)
	}
	return buf.Bytes()
}

// DecodeState parses a snapshot block produced by EncodeState.
func DecodeState(data []byte) (ledger.State, error) {
	var st ledger.State
	if len(data) < 1+8+32+4 {
		return st, fmt.Errorf("snapshot: truncated block: %d bytes", len(data))
	}
	if data[0] != formatVersion {
		return st, fmt.Errorf("snapshot: unsupported format version %d", data[0])
	}
	off := 1
	st.Slot = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	copy(st.Blockhash[:], data[off:off+32])
	off += 32
	count := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	for i := uint32(0); i < count; i++ {
		if len(data)-off < pubkey.Size+4 {
			return st, fmt.Errorf("snapshot: truncated account record %d", i)
		}
		key, err := pubkey.FromBytes(data[off : off+pubkey.Size])
		if err != nil {
			return st, fmt.Errorf("snapshot: %w", err)
		}
		off += pubkey.Size
		encLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if len(data)-off < encLen {
			return st, fmt.Errorf("snapshot: truncated account record %d", i)
		}
		acct, err := account.Decode(data[off : off+encLen])
		if err != nil {
			return st, fmt.Errorf("snapshot: account %s: %w", key, err)
		}
		off += encLen
		st.Accounts = append(st.Accounts, ledger.AccountRecord{Key: key, Account: *acct})
	}
	if off != len(data) {
		return st, fmt.Errorf("snapshot: trailing bytes after block")
	}
	return st, nil
}
