// Package system implements the native system program: account creation,
// seed-derived account creation, ownership assignment, lamport transfers
// and data allocation.
//
// The system program owns every plain wallet account, which is what lets
// it debit lamports from them on behalf of their signing holders.
package system

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

// ID is the system program address (all zero bytes).
var ID = runtime.SystemProgramID

// Instruction tags, in the u32 little-endian prefix of instruction data.
const (
	TagCreateAccount         uint32 = 0
	TagAssign                uint32 = 1
	TagTransfer              uint32 = 2
	TagCreateAccountWithSeed uint32 = 3
	TagAllocate              uint32 = 8
)

func init() {
	runtime.MustRegister(runtime.Program{
		ID:      ID,
		Name:    "system",
		Process: process,
	})
}

func process(ic *runtime.InvokeContext) error {
	ix, err := decode(ic.InstructionData())
	if err != nil {
		return err
	}
	switch ix := ix.(type) {
	case createAccount:
		return processCreateAccount(ic, ix)
	case assign:
		return processAssign(ic, ix)
	case transfer:
		return processTransfer(ic, ix)
	case createAccountWithSeed:
		return processCreateAccountWithSeed(ic, ix)
	case allocate:
		return processAllocate(ic, ix)
	default:
		return runtime.NewError(runtime.KindInternal, "SYS-INT-001", "unhandled system instruction")
	}
}

type createAccount struct {
	Lamports uint64
	Space    uint64
	Owner    pubkey.PublicKey
}

type assign struct {
	Owner pubkey.PublicKey
}

type transfer struct {
	Lamports uint64
}

type createAccountWithSeed struct {
	Base     pubkey.PublicKey
	Seed     string
	Lamports uint64
	Space    uint64
	Owner    pubkey.PublicKey
}

type allocate struct {
	Space uint64
}

func processCreateAccount(ic *runtime.InvokeContext, ix createAccount) error {
	funder, err := ic.NextAccount()
	if err != nil {
		return err
	}
	newAcct, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if !funder.IsSigner || !newAcct.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "SYS-PRIV-001", "create account requires funder and new account signatures")
	}
	return create(ic, funder, newAcct, ix.Lamports, ix.Space, ix.Owner)
}

func processCreateAccountWithSeed(ic *runtime.InvokeContext, ix createAccountWithSeed) error {
	funder, err := ic.NextAccount()
	if err != nil {
		return err
	}
	newAcct, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if !funder.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "SYS-PRIV-002", "create account requires the funder signature")
	}
	// The new account's address is proven by the derivation, not by its
	// own signature; the base key must have signed instead.
	derived, err := pubkey.CreateWithSeed(ix.Base, ix.Seed, ix.Owner)
	if err != nil {
		return runtime.WrapError(runtime.KindState, "SYS-STATE-002", "seed derivation failed", err)
	}
	if derived != newAcct.Key {
		return runtime.NewError(runtime.KindState, "SYS-STATE-003",
			fmt.Sprintf("address %s does not match seed derivation %s", newAcct.Key, derived))
	}
	if ix.Base == funder.Key {
		// funder signature covers the base
	} else {
		base, err := ic.NextAccount()
		if err != nil {
			return err
		}
		if base.Key != ix.Base || !base.IsSigner {
			return runtime.NewError(runtime.KindPrivilege, "SYS-PRIV-003", "base key must sign seed-derived creation")
		}
	}
	return create(ic, funder, newAcct, ix.Lamports, ix.Space, ix.Owner)
}

func create(ic *runtime.InvokeContext, funder, newAcct *runtime.AccountView, lamports, space uint64, owner pubkey.PublicKey) error {
	if newAcct.Lamports() != 0 || len(newAcct.Data()) != 0 || newAcct.Owner() != ID {
		return runtime.NewError(runtime.KindState, "SYS-STATE-001",
			fmt.Sprintf("account %s already in use", newAcct.Key))
	}
	if space > runtime.MaxAccountDataLen {
		return runtime.NewError(runtime.KindState, "SYS-STATE-004", "requested space exceeds the account data limit")
	}
	if err := funder.SubLamports(lamports); err != nil {
		return err
	}
	if err := newAcct.AddLamports(lamports); err != nil {
		return err
	}
	newAcct.SetData(make([]byte, space))
	newAcct.SetOwner(owner)
	ic.Log("Created account %s with %d lamports, %d bytes, owner %s", newAcct.Key, lamports, space, owner)
	return nil
}

func processAssign(ic *runtime.InvokeContext, ix assign) error {
	target, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if !target.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "SYS-PRIV-004", "assign requires the account signature")
	}
	// The zeroed-data and writability gates are enforced by the runtime
	// after this returns.
	target.SetOwner(ix.Owner)
	ic.Log("Assigned account %s to %s", target.Key, ix.Owner)
	return nil
}

func processTransfer(ic *runtime.InvokeContext, ix transfer) error {
	from, err := ic.NextAccount()
	if err != nil {
		return err
	}
	to, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if !from.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "SYS-PRIV-005", "transfer requires the source signature")
	}
	if err := from.SubLamports(ix.Lamports); err != nil {
		return err
	}
	if err := to.AddLamports(ix.Lamports); err != nil {
		return err
	}
	ic.Log("Transferred %d lamports from %s to %s", ix.Lamports, from.Key, to.Key)
	return nil
}

func processAllocate(ic *runtime.InvokeContext, ix allocate) error {
	target, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if !target.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "SYS-PRIV-006", "allocate requires the account signature")
	}
	if len(target.Data()) != 0 {
		return runtime.NewError(runtime.KindState, "SYS-STATE-005", "account data already allocated")
	}
	if ix.Space > runtime.MaxAccountDataLen {
		return runtime.NewError(runtime.KindState, "SYS-STATE-004", "requested space exceeds the account data limit")
	}
	target.SetData(make([]byte, ix.Space))
	return nil
}

func decode(data []byte) (any, error) {
	if len(data) < 4 {
		return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-001", "instruction data too short")
	}
	tag := binary.LittleEndian.Uint32(data[:4])
	body := data[4:]
	switch tag {
	case TagCreateAccount:
		if len(body) != 8+8+pubkey.Size {
			return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-002", "malformed create account data")
		}
		owner, _ := pubkey.FromBytes(body[16 : 16+pubkey.Size])
		return createAccount{
			Lamports: binary.LittleEndian.Uint64(body[0:8]),
			Space:    binary.LittleEndian.Uint64(body[8:16]),
			Owner:    owner,
		}, nil
	case TagAssign:
		if len(body) != pubkey.Size {
			return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-003", "malformed assign data")
		}
		owner, _ := pubkey.FromBytes(body)
		return assign{Owner: owner}, nil
	case TagTransfer:
		if len(body) != 8 {
			return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-004", "malformed transfer data")
		}
		return transfer{Lamports: binary.LittleEndian.Uint64(body)}, nil
	case TagCreateAccountWithSeed:
		if len(body) < pubkey.Size+4 {
			return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-005", "malformed seed creation data")
		}
		base, _ := pubkey.FromBytes(body[:pubkey.Size])
		rest := body[pubkey.Size:]
		seedLen := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		// Bound the length before converting: a huge declared length must
		// not wrap the size comparison below.
		if seedLen > pubkey.MaxSeedLen || len(rest) != int(seedLen)+8+8+pubkey.Size {
			return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-005", "malformed seed creation data")
		}
		seed := string(rest[:seedLen])
		rest = rest[seedLen:]
		owner, _ := pubkey.FromBytes(rest[16 : 16+pubkey.Size])
		return createAccountWithSeed{
			Base:     base,
			Seed:     seed,
			Lamports: binary.LittleEndian.Uint64(rest[0:8]),
			Space:    binary.LittleEndian.Uint64(rest[8:16]),
			Owner:    owner,
		}, nil
	case TagAllocate:
		if len(body) != 8 {
			return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-006", "malformed allocate data")
		}
		return allocate{Space: binary.LittleEndian.Uint64(body)}, nil
	default:
		return nil, runtime.NewError(runtime.KindDecode, "SYS-DEC-007",
			fmt.Sprintf("unrecognized system instruction %d", tag))
	}
}

// NewCreateAccount builds the instruction funding a brand new account.
// Both the funder and the new account must sign the transaction.
func NewCreateAccount(funder, newAccount pubkey.PublicKey, lamports, space uint64, owner pubkey.PublicKey) runtime.Instruction {
	var buf bytes.Buffer
	writeU32(&buf, TagCreateAccount)
	writeU64(&buf, lamports)
	writeU64(&buf, space)
	buf.Write(owner[:])
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(funder).Signer().Writable(),
			runtime.Meta(newAccount).Signer().Writable(),
		},
		Data: buf.Bytes(),
	}
}

// NewCreateAccountWithSeed builds the instruction creating the account at
// pubkey.CreateWithSeed(base, seed, owner). Only the funder (and base,
// when distinct) signs; the derived account itself has no key.
func NewCreateAccountWithSeed(funder, newAccount, base pubkey.PublicKey, seed string, lamports, space uint64, owner pubkey.PublicKey) runtime.Instruction {
	var buf bytes.Buffer
	writeU32(&buf, TagCreateAccountWithSeed)
	buf.Write(base[:])
	writeU32(&buf, uint32(len(seed)))
	buf.WriteString(seed)
	writeU64(&buf, lamports)
	writeU64(&buf, space)
	buf.Write(owner[:])

	metas := []runtime.AccountMeta{
		runtime.Meta(funder).Signer().Writable(),
		runtime.Meta(newAccount).Writable(),
	}
	if base != funder {
		metas = append(metas, runtime.Meta(base).Signer())
	}
	return runtime.Instruction{ProgramID: ID, Accounts: metas, Data: buf.Bytes()}
}

// NewAssign builds the instruction reassigning account ownership.
func NewAssign(target, owner pubkey.PublicKey) runtime.Instruction {
	var buf bytes.Buffer
	writeU32(&buf, TagAssign)
	buf.Write(owner[:])
	return runtime.Instruction{
		ProgramID: ID,
		Accounts:  []runtime.AccountMeta{runtime.Meta(target).Signer().Writable()},
		Data:      buf.Bytes(),
	}
}

// NewTransfer builds a lamport transfer.
func NewTransfer(from, to pubkey.PublicKey, lamports uint64) runtime.Instruction {
	var buf bytes.Buffer
	writeU32(&buf, TagTransfer)
	writeU64(&buf, lamports)
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(from).Signer().Writable(),
			runtime.Meta(to).Writable(),
		},
		Data: buf.Bytes(),
	}
}

// NewAllocate builds the instruction sizing an account's data buffer.
func NewAllocate(target pubkey.PublicKey, space uint64) runtime.Instruction {
	var buf bytes.Buffer
	writeU32(&buf, TagAllocate)
	writeU64(&buf, space)
	return runtime.Instruction{
		ProgramID: ID,
		Accounts:  []runtime.AccountMeta{runtime.Meta(target).Signer().Writable()},
		Data:      buf.Bytes(),
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
