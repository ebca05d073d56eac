// Package token implements a minimal fungible-token program in the shape
// of the SPL token lesson: mints record supply and a minting authority,
// holding accounts record a balance and a spending authority.
//
// The spending authority stored in account data is deliberately distinct
// from the runtime-level account owner: every mint and holding account is
// owned by this program, and the program decides what the recorded
// authority may do. Handing a holding account's authority to a PDA is what
// makes the escrow lesson work.
package token

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
	"github.com/jacekv/minisol/sysvar"
)

// ID is the token program address.
var ID = pubkey.ProgramID("token")

// Instruction tags, in the leading byte of instruction data.
const (
	TagInitializeMint    byte = 0
	TagInitializeAccount byte = 1
	TagTransfer          byte = 3
	TagSetAuthority      byte = 6
	TagMintTo            byte = 7
	TagCloseAccount      byte = 9
)

func init() {
	runtime.MustRegister(runtime.Program{
		ID:      ID,
		Name:    "token",
		Process: process,
	})
}

func process(ic *runtime.InvokeContext) error {
	data := ic.InstructionData()
	if len(data) == 0 {
		return runtime.NewError(runtime.KindDecode, "TOK-DEC-003", "missing instruction data")
	}
	switch data[0] {
	case TagInitializeMint:
		return processInitializeMint(ic, data[1:])
	case TagInitializeAccount:
		return processInitializeAccount(ic, data[1:])
	case TagTransfer:
		return processTransfer(ic, data[1:])
	case TagSetAuthority:
		return processSetAuthority(ic, data[1:])
	case TagMintTo:
		return processMintTo(ic, data[1:])
	case TagCloseAccount:
		return processCloseAccount(ic, data[1:])
	default:
		return runtime.NewError(runtime.KindDecode, "TOK-DEC-004",
			fmt.Sprintf("unrecognized token instruction %d", data[0]))
	}
}

func processInitializeMint(ic *runtime.InvokeContext, body []byte) error {
	if len(body) != 1+pubkey.Size {
		return runtime.NewError(runtime.KindDecode, "TOK-DEC-005", "malformed initialize mint data")
	}
	decimals := body[0]
	authority, _ := pubkey.FromBytes(body[1:])

	mintView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	rentView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if err := checkUninitialized(mintView, MintLen); err != nil {
		return err
	}
	if err := checkRentExempt(rentView, mintView); err != nil {
		return err
	}

	mint := Mint{Authority: authority, Decimals: decimals, Initialized: true}
	mintView.SetData(mint.EncodeMint())
	ic.Log("Initialized mint %s with authority %s", mintView.Key, authority)
	return nil
}

func processInitializeAccount(ic *runtime.InvokeContext, body []byte) error {
	if len(body) != 0 {
		return runtime.NewError(runtime.KindDecode, "TOK-DEC-006", "initialize account takes no data")
	}
	acctView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	mintView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	authorityView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	rentView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if err := checkUninitialized(acctView, AccountLen); err != nil {
		return err
	}
	if _, err := mintState(mintView); err != nil {
		return err
	}
	if err := checkRentExempt(rentView, acctView); err != nil {
		return err
	}

	acct := Account{Mint: mintView.Key, Authority: authorityView.Key, Initialized: true}
	acctView.SetData(acct.EncodeAccount())
	ic.Log("Initialized token account %s for mint %s, authority %s", acctView.Key, mintView.Key, authorityView.Key)
	return nil
}

func processTransfer(ic *runtime.InvokeContext, body []byte) error {
	amount, err := decodeAmount(body)
	if err != nil {
		return err
	}
	srcView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	dstView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	authority, err := ic.NextAccount()
	if err != nil {
		return err
	}

	src, err := accountState(srcView)
	if err != nil {
		return err
	}
	dst, err := accountState(dstView)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return runtime.NewError(runtime.KindState, "TOK-STATE-003", "source and destination mints differ")
	}
	if err := checkAuthority(authority, src.Authority); err != nil {
		return err
	}
	if amount > src.Amount {
		return runtime.NewError(runtime.KindFunds, "TOK-FUNDS-001",
			fmt.Sprintf("insufficient token balance: have %d, need %d", src.Amount, amount))
	}
	// Source and destination may be the same account. src and dst are
	// then two decodes of one data buffer, and writing both back would
	// credit the stale pre-debit balance. A self-transfer changes nothing.
	if srcView.Key == dstView.Key {
		ic.Log("Transferred %d tokens from %s to %s", amount, srcView.Key, dstView.Key)
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return runtime.NewError(runtime.KindArithmetic, "TOK-MATH-001", "destination balance overflow")
	}

	src.Amount -= amount
	dst.Amount += amount
	srcView.SetData(src.EncodeAccount())
	dstView.SetData(dst.EncodeAccount())
	ic.Log("Transferred %d tokens from %s to %s", amount, srcView.Key, dstView.Key)
	return nil
}

func processSetAuthority(ic *runtime.InvokeContext, body []byte) error {
	if len(body) != pubkey.Size {
		return runtime.NewError(runtime.KindDecode, "TOK-DEC-007", "malformed set authority data")
	}
	newAuthority, _ := pubkey.FromBytes(body)

	targetView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	authority, err := ic.NextAccount()
	if err != nil {
		return err
	}

	switch len(targetView.Data()) {
	case MintLen:
		mint, err := mintState(targetView)
		if err != nil {
			return err
		}
		if err := checkAuthority(authority, mint.Authority); err != nil {
			return err
		}
		mint.Authority = newAuthority
		targetView.SetData(mint.EncodeMint())
	case AccountLen:
		acct, err := accountState(targetView)
		if err != nil {
			return err
		}
		if err := checkAuthority(authority, acct.Authority); err != nil {
			return err
		}
		acct.Authority = newAuthority
		targetView.SetData(acct.EncodeAccount())
	default:
		return runtime.NewError(runtime.KindState, "TOK-STATE-004", "account is neither a mint nor a token account")
	}
	ic.Log("Authority of %s is now %s", targetView.Key, newAuthority)
	return nil
}

func processMintTo(ic *runtime.InvokeContext, body []byte) error {
	amount, err := decodeAmount(body)
	if err != nil {
		return err
	}
	mintView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	dstView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	authority, err := ic.NextAccount()
	if err != nil {
		return err
	}

	mint, err := mintState(mintView)
	if err != nil {
		return err
	}
	dst, err := accountState(dstView)
	if err != nil {
		return err
	}
	if dst.Mint != mintView.Key {
		return runtime.NewError(runtime.KindState, "TOK-STATE-005", "destination account belongs to a different mint")
	}
	if err := checkAuthority(authority, mint.Authority); err != nil {
		return err
	}
	if mint.Supply+amount < mint.Supply || dst.Amount+amount < dst.Amount {
		return runtime.NewError(runtime.KindArithmetic, "TOK-MATH-002", "supply overflow")
	}

	mint.Supply += amount
	dst.Amount += amount
	mintView.SetData(mint.EncodeMint())
	dstView.SetData(dst.EncodeAccount())
	ic.Log("Minted %d tokens to %s (supply now %d)", amount, dstView.Key, mint.Supply)
	return nil
}

func processCloseAccount(ic *runtime.InvokeContext, body []byte) error {
	if len(body) != 0 {
		return runtime.NewError(runtime.KindDecode, "TOK-DEC-008", "close account takes no data")
	}
	targetView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	dstView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	authority, err := ic.NextAccount()
	if err != nil {
		return err
	}

	target, err := accountState(targetView)
	if err != nil {
		return err
	}
	if err := checkAuthority(authority, target.Authority); err != nil {
		return err
	}
	if target.Amount != 0 {
		return runtime.NewError(runtime.KindState, "TOK-STATE-006", "cannot close an account holding tokens")
	}

	lamports := targetView.Lamports()
	if err := targetView.SubLamports(lamports); err != nil {
		return err
	}
	if err := dstView.AddLamports(lamports); err != nil {
		return err
	}
	targetView.SetData(make([]byte, 0))
	ic.Log("Closed token account %s, refunded %d lamports to %s", targetView.Key, lamports, dstView.Key)
	return nil
}

func checkUninitialized(v *runtime.AccountView, wantLen int) error {
	if v.Owner() != ID {
		return runtime.NewError(runtime.KindOwner, "TOK-OWN-001", "account is not owned by the token program")
	}
	if !v.IsWritable {
		return runtime.NewError(runtime.KindPrivilege, "TOK-PRIV-001", "account must be writable")
	}
	if len(v.Data()) != wantLen {
		return runtime.NewError(runtime.KindState, "TOK-STATE-001",
			fmt.Sprintf("account data must be %d bytes, got %d", wantLen, len(v.Data())))
	}
	for _, b := range v.Data() {
		if b != 0 {
			return runtime.NewError(runtime.KindState, "TOK-STATE-002", "account already initialized")
		}
	}
	return nil
}

func checkRentExempt(rentView, target *runtime.AccountView) error {
	rent, err := sysvar.RentFromAccount(rentView)
	if err != nil {
		return err
	}
	if !rent.IsExempt(target.Lamports(), uint64(len(target.Data()))) {
		return runtime.NewError(runtime.KindFunds, "TOK-FUNDS-002",
			fmt.Sprintf("account %s is not rent-exempt", target.Key))
	}
	return nil
}

func checkAuthority(signer *runtime.AccountView, want pubkey.PublicKey) error {
	if signer.Key != want {
		return runtime.NewError(runtime.KindPrivilege, "TOK-PRIV-002",
			fmt.Sprintf("authority mismatch: %s is not %s", signer.Key, want))
	}
	if !signer.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "TOK-PRIV-003", "authority did not sign")
	}
	return nil
}

func mintState(v *runtime.AccountView) (Mint, error) {
	if v.Owner() != ID {
		return Mint{}, runtime.NewError(runtime.KindOwner, "TOK-OWN-001", "account is not owned by the token program")
	}
	mint, err := DecodeMint(v.Data())
	if err != nil {
		return Mint{}, err
	}
	if !mint.Initialized {
		return Mint{}, runtime.NewError(runtime.KindState, "TOK-STATE-007", "mint is not initialized")
	}
	return mint, nil
}

func accountState(v *runtime.AccountView) (Account, error) {
	if v.Owner() != ID {
		return Account{}, runtime.NewError(runtime.KindOwner, "TOK-OWN-001", "account is not owned by the token program")
	}
	acct, err := DecodeAccount(v.Data())
	if err != nil {
		return Account{}, err
	}
	if !acct.Initialized {
		return Account{}, runtime.NewError(runtime.KindState, "TOK-STATE-008", "token account is not initialized")
	}
	return acct, nil
}

func decodeAmount(body []byte) (uint64, error) {
	if len(body) != 8 {
		return 0, runtime.NewError(runtime.KindDecode, "TOK-DEC-009", "malformed amount")
	}
	return binary.LittleEndian.Uint64(body), nil
}

// Instruction builders.

// NewInitializeMint builds the mint initialization instruction. The mint
// account must already exist with MintLen zeroed bytes, owned by this
// program and rent-exempt.
func NewInitializeMint(mint pubkey.PublicKey, decimals uint8, authority pubkey.PublicKey) runtime.Instruction {
	var buf bytes.Buffer
	buf.WriteByte(TagInitializeMint)
	buf.WriteByte(decimals)
	buf.Write(authority[:])
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(mint).Writable(),
			runtime.Meta(sysvar.RentID),
		},
		Data: buf.Bytes(),
	}
}

// NewInitializeAccount builds the holding-account initialization
// instruction. The recorded authority is taken from the meta, not from a
// signature, so accounts can be opened on someone else's behalf.
func NewInitializeAccount(acct, mint, authority pubkey.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(acct).Writable(),
			runtime.Meta(mint),
			runtime.Meta(authority),
			runtime.Meta(sysvar.RentID),
		},
		Data: []byte{TagInitializeAccount},
	}
}

// NewTransfer builds a token transfer authorized by the source account's
// recorded authority.
func NewTransfer(src, dst, authority pubkey.PublicKey, amount uint64) runtime.Instruction {
	var buf bytes.Buffer
	buf.WriteByte(TagTransfer)
	writeU64(&buf, amount)
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(src).Writable(),
			runtime.Meta(dst).Writable(),
			runtime.Meta(authority).Signer(),
		},
		Data: buf.Bytes(),
	}
}

// NewSetAuthority builds the instruction handing a mint's or token
// account's recorded authority to newAuthority.
func NewSetAuthority(target, currentAuthority, newAuthority pubkey.PublicKey) runtime.Instruction {
	var buf bytes.Buffer
	buf.WriteByte(TagSetAuthority)
	buf.Write(newAuthority[:])
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(target).Writable(),
			runtime.Meta(currentAuthority).Signer(),
		},
		Data: buf.Bytes(),
	}
}

// NewMintTo builds the supply-minting instruction.
func NewMintTo(mint, dst, mintAuthority pubkey.PublicKey, amount uint64) runtime.Instruction {
	var buf bytes.Buffer
	buf.WriteByte(TagMintTo)
	writeU64(&buf, amount)
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(mint).Writable(),
			runtime.Meta(dst).Writable(),
			runtime.Meta(mintAuthority).Signer(),
		},
		Data: buf.Bytes(),
	}
}

// NewCloseAccount builds the instruction closing an emptied token account
// and refunding its lamports.
func NewCloseAccount(target, lamportDst, authority pubkey.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(target).Writable(),
			runtime.Meta(lamportDst).Writable(),
			runtime.Meta(authority).Signer(),
		},
		Data: []byte{TagCloseAccount},
	}
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
