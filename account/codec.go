package account

import (
	"encoding/binary"
	"fmt"

	"github.com/jacekv/minisol/pubkey"
)

// Wire layout (little-endian):
//
//	u64 lamports
//	32B owner
//	u8  executable
//	u64 rent epoch
//	u32 data length + data

const headerLen = 8 + pubkey.Size + 1 + 8 + 4

// Encode renders the account's binary form, used by the RPC surface and
// state snapshots.
func (a *Account) Encode() []byte {
	out := make([]byte, headerLen+len(a.Data))
	binary.LittleEndian.PutUint64(out[0:8], a.Lamports)
	copy(out[8:40], a.Owner[:])
	if a.Executable {
		out[40] = 1
	}
	binary.LittleEndian.PutUint64(out[41:49], a.RentEpoch)
	binary.LittleEndian.PutUint32(out[49:53], uint32(len(a.Data)))
	copy(out[headerLen:], a.Data)
	return out
}

// Decode parses the binary form produced by Encode.
func Decode(data []byte) (*Account, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("account: truncated encoding: %d bytes", len(data))
	}
	owner, err := pubkey.FromBytes(data[8:40])
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	dataLen := binary.LittleEndian.Uint32(data[49:53])
	if len(data) != headerLen+int(dataLen) {
		return nil, fmt.Errorf("account: data length %d does not match encoding size %d", dataLen, len(data))
	}
	return &Account{
		Lamports:   binary.LittleEndian.Uint64(data[0:8]),
		Owner:      owner,
		Data:       append([]byte(nil), data[headerLen:]...),
		Executable: data[40] != 0,
		RentEpoch:  binary.LittleEndian.Uint64(data[41:49]),
	}, nil
}
