package runtime

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/pubkey"
)

// SignatureSize is the byte length of an ed25519 signature.
const SignatureSize = 64

// Signature is a raw ed25519 signature over the encoded message.
type Signature [SignatureSize]byte

func (s Signature) String() string { return base58.Encode(s[:]) }

// SignatureEntry pairs a signer with its signature.
type SignatureEntry struct {
	PublicKey pubkey.PublicKey
	Signature Signature
}

// Transaction is a signed message. The first signature must be the fee
// payer's; its base58 form doubles as the transaction ID.
type Transaction struct {
	Signatures []SignatureEntry
	Message    Message
}

const maxWireSignatures = 16

// NewTransaction signs msg with each keypair, payer first.
//
// Every keypair must actually be required by the message: the payer, or a
// signer named by some instruction.
func NewTransaction(msg Message, signers ...*keys.Keypair) (*Transaction, error) {
	if len(signers) == 0 {
		return nil, NewError(KindPrivilege, "RT-SIG-001", "transaction requires at least one signer")
	}
	if signers[0].PublicKey() != msg.Payer {
		return nil, NewError(KindPrivilege, "RT-SIG-002", "first signer must be the fee payer")
	}
	encoded := msg.Encode()
	tx := &Transaction{Message: msg}
	seen := make(map[pubkey.PublicKey]bool, len(signers))
	for _, kp := range signers {
		pk := kp.PublicKey()
		if seen[pk] {
			continue
		}
		seen[pk] = true
		var sig Signature
		copy(sig[:], kp.Sign(encoded))
		tx.Signatures = append(tx.Signatures, SignatureEntry{PublicKey: pk, Signature: sig})
	}
	return tx, nil
}

// ID returns the transaction identifier: the payer signature in base58.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return tx.Signatures[0].Signature.String()
}

// VerifySignatures checks every signature against the encoded message and
// that the fee payer signed. It returns the set of verified signers.
func (tx *Transaction) VerifySignatures() (map[pubkey.PublicKey]struct{}, error) {
	encoded := tx.Message.Encode()
	signers := make(map[pubkey.PublicKey]struct{}, len(tx.Signatures))
	for _, entry := range tx.Signatures {
		if !keys.Verify(entry.PublicKey, encoded, entry.Signature[:]) {
			return nil, NewError(KindPrivilege, "RT-SIG-003",
				fmt.Sprintf("signature verification failed for %s", entry.PublicKey))
		}
		signers[entry.PublicKey] = struct{}{}
	}
	if _, ok := signers[tx.Message.Payer]; !ok {
		return nil, NewError(KindPrivilege, "RT-SIG-004", "fee payer did not sign")
	}
	return signers, nil
}

// Encode renders the wire form: u8 signature count, each signature entry
// (32B pubkey + 64B signature), then the encoded message.
func (tx *Transaction) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(len(tx.Signatures)))
	for _, entry := range tx.Signatures {
		buf.Write(entry.PublicKey[:])
		buf.Write(entry.Signature[:])
	}
	buf.Write(tx.Message.Encode())
	return buf.Bytes()
}

// DecodeTransaction parses the wire form produced by Encode.
func DecodeTransaction(data []byte) (*Transaction, error) {
	r := &wireReader{buf: data}
	nSigs, err := r.byte()
	if err != nil {
		return nil, err
	}
	if int(nSigs) > maxWireSignatures {
		return nil, NewError(KindDecode, "RT-WIRE-007", "signature count exceeds wire limit")
	}
	tx := &Transaction{}
	for i := 0; i < int(nSigs); i++ {
		var entry SignatureEntry
		if entry.PublicKey, err = r.pubkey(); err != nil {
			return nil, err
		}
		sig, err := r.bytes(SignatureSize)
		if err != nil {
			return nil, err
		}
		copy(entry.Signature[:], sig)
		tx.Signatures = append(tx.Signatures, entry)
	}
	msg, err := DecodeMessage(r.buf[r.off:])
	if err != nil {
		return nil, err
	}
	tx.Message = *msg
	return tx, nil
}
