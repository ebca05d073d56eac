package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TxStatus is the wire form of a transaction outcome: the accepted
// signature, the slot it landed in, the execution error if any, and the
// program log. It crosses the RPC boundary as a BytesValue.
type TxStatus struct {
	Signature string
	Slot      uint64
	Err       string
	Logs      []string
}

// Ok reports whether execution succeeded.
func (s TxStatus) Ok() bool { return s.Err == "" }

// Encode renders the status (little-endian, length-prefixed strings).
func (s TxStatus) Encode() []byte {
	var buf bytes.Buffer
	writeString(&buf, s.Signature)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], s.Slot)
	buf.Write(u64[:])
	writeString(&buf, s.Err)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(s.Logs)))
	buf.Write(u32[:])
	for _, line := range s.Logs {
		writeString(&buf, line)
	}
	return buf.Bytes()
}

// DecodeTxStatus parses the wire form produced by Encode.
func DecodeTxStatus(data []byte) (TxStatus, error) {
	r := statusReader{buf: data}
	var s TxStatus
	var err error
	if s.Signature, err = r.str(); err != nil {
		return s, err
	}
	if s.Slot, err = r.uint64(); err != nil {
		return s, err
	}
	if s.Err, err = r.str(); err != nil {
		return s, err
	}
	n, err := r.uint32()
	if err != nil {
		return s, err
	}
	for i := uint32(0); i < n; i++ {
		line, err := r.str()
		if err != nil {
			return s, err
		}
		s.Logs = append(s.Logs, line)
	}
	if r.off != len(r.buf) {
		return s, fmt.Errorf("rpc: trailing bytes after status")
	}
	return s, nil
}

func writeString(buf *bytes.Buffer, s string) {
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(s)))
	buf.Write(u32[:])
	buf.WriteString(s)
}

type statusReader struct {
	buf []byte
	off int
}

func (r *statusReader) take(n int) ([]byte, error) {
	if len(r.buf)-r.off < n {
		return nil, fmt.Errorf("rpc: truncated status encoding")
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *statusReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *statusReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *statusReader) str() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
