package runtime

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/jacekv/minisol/pubkey"
)

// Hash is a 32-byte blockhash. Its text form is base58.
type Hash [32]byte

func (h Hash) String() string { return base58.Encode(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// HashFromBase58 decodes the text form.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	b, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("runtime: invalid blockhash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("runtime: blockhash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Message is the signed portion of a transaction: who pays the fee, which
// blockhash proves recency, and the instructions to run in order.
type Message struct {
	Payer           pubkey.PublicKey
	RecentBlockhash Hash
	Instructions    []Instruction
}

// messageVersion tags the wire encoding so it can evolve.
const messageVersion = 1

// Wire-format bounds. Decoding rejects anything larger.
const (
	maxWireInstructions = 1 << 10
	maxWireAccounts     = 1 << 8
	maxWireData         = 1 << 20
)

const (
	flagSigner   = 1 << 0
	flagWritable = 1 << 1
)

// Encode renders the deterministic binary form that signatures cover.
//
// Layout (all integers little-endian):
//
//	u8  version
//	32B payer
//	32B recent blockhash
//	u16 instruction count, then per instruction:
//	  32B program id
//	  u16 account count, then per account: 32B pubkey + u8 privilege flags
//	  u32 data length + data
func (m *Message) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(messageVersion)
	buf.Write(m.Payer[:])
	buf.Write(m.RecentBlockhash[:])

	var u16 [2]byte
	var u32 [4]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(len(m.Instructions)))
	buf.Write(u16[:])
	for _, ix := range m.Instructions {
		buf.Write(ix.ProgramID[:])
		binary.LittleEndian.PutUint16(u16[:], uint16(len(ix.Accounts)))
		buf.Write(u16[:])
		for _, meta := range ix.Accounts {
			buf.Write(meta.PublicKey[:])
			var flags byte
			if meta.IsSigner {
				flags |= flagSigner
			}
			if meta.IsWritable {
				flags |= flagWritable
			}
			buf.WriteByte(flags)
		}
		binary.LittleEndian.PutUint32(u32[:], uint32(len(ix.Data)))
		buf.Write(u32[:])
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

// DecodeMessage parses the wire form, rejecting truncated or oversized
// input. Decode(Encode(m)) == m for every valid message.
func DecodeMessage(data []byte) (*Message, error) {
	r := &wireReader{buf: data}

	version, err := r.byte()
	if err != nil {
		return nil, err
	}
	if version != messageVersion {
		return nil, NewError(KindDecode, "RT-WIRE-001", fmt.Sprintf("unsupported message version %d", version))
	}

	var m Message
	if m.Payer, err = r.pubkey(); err != nil {
		return nil, err
	}
	var bh []byte
	if bh, err = r.bytes(len(m.RecentBlockhash)); err != nil {
		return nil, err
	}
	copy(m.RecentBlockhash[:], bh)

	nIx, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if nIx > maxWireInstructions {
		return nil, NewError(KindDecode, "RT-WIRE-002", "instruction count exceeds wire limit")
	}
	m.Instructions = make([]Instruction, 0, nIx)
	for i := 0; i < int(nIx); i++ {
		var ix Instruction
		if ix.ProgramID, err = r.pubkey(); err != nil {
			return nil, err
		}
		nAcc, err := r.uint16()
		if err != nil {
			return nil, err
		}
		if nAcc > maxWireAccounts {
			return nil, NewError(KindDecode, "RT-WIRE-003", "account count exceeds wire limit")
		}
		ix.Accounts = make([]AccountMeta, 0, nAcc)
		for j := 0; j < int(nAcc); j++ {
			var meta AccountMeta
			if meta.PublicKey, err = r.pubkey(); err != nil {
				return nil, err
			}
			flags, err := r.byte()
			if err != nil {
				return nil, err
			}
			meta.IsSigner = flags&flagSigner != 0
			meta.IsWritable = flags&flagWritable != 0
			ix.Accounts = append(ix.Accounts, meta)
		}
		dataLen, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if dataLen > maxWireData {
			return nil, NewError(KindDecode, "RT-WIRE-004", "instruction data exceeds wire limit")
		}
		if ix.Data, err = r.bytes(int(dataLen)); err != nil {
			return nil, err
		}
		m.Instructions = append(m.Instructions, ix)
	}
	if r.remaining() != 0 {
		return nil, NewError(KindDecode, "RT-WIRE-005", "trailing bytes after message")
	}
	return &m, nil
}

// wireReader is a bounds-checked cursor over wire bytes.
type wireReader struct {
	buf []byte
	off int
}

func (r *wireReader) remaining() int { return len(r.buf) - r.off }

func (r *wireReader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, NewError(KindDecode, "RT-WIRE-006", "truncated wire data")
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *wireReader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *wireReader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *wireReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *wireReader) pubkey() (pubkey.PublicKey, error) {
	b, err := r.bytes(pubkey.Size)
	if err != nil {
		return pubkey.Zero, err
	}
	return pubkey.FromBytes(b)
}
