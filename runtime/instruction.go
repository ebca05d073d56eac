package runtime

import "github.com/jacekv/minisol/pubkey"

// SystemProgramID is the native system program address. It decodes to all
// zero bytes and is the default owner of fresh accounts.
var SystemProgramID = pubkey.MustFromBase58("11111111111111111111111111111111")

// AccountMeta names an account an instruction operates on, together with
// the privileges the transaction grants it for that instruction.
type AccountMeta struct {
	PublicKey  pubkey.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Meta is a convenience constructor for read-only, non-signing accounts.
func Meta(pk pubkey.PublicKey) AccountMeta {
	return AccountMeta{PublicKey: pk}
}

// Signer marks the meta as signing.
func (m AccountMeta) Signer() AccountMeta {
	m.IsSigner = true
	return m
}

// Writable marks the meta as writable.
func (m AccountMeta) Writable() AccountMeta {
	m.IsWritable = true
	return m
}

// Instruction is one program invocation: the program to run, the accounts
// it may touch, and opaque instruction data the program decodes itself.
type Instruction struct {
	ProgramID pubkey.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}
