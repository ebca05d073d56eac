// Package escrow implements the token-swap lesson: Alice locks X tokens
// in a temporary account whose authority is handed to a program-derived
// address, and Bob later completes the swap by paying the expected Y
// tokens, at which point the program signs for the PDA to release the X
// tokens and close the temporary account.
//
// The program never holds a private key. Its authority over the temporary
// account rests entirely on the PDA being off-curve and on InvokeSigned
// granting signer privilege only for addresses derived from this
// program's ID.
package escrow

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jacekv/minisol/programs/token"
	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
	"github.com/jacekv/minisol/sysvar"
)

// ID is the escrow program address.
var ID = pubkey.ProgramID("escrow")

// AuthoritySeed is the single seed component of the escrow PDA.
var AuthoritySeed = []byte("escrow")

// Instruction tags.
const (
	TagInitEscrow byte = 0
	TagExchange   byte = 1
)

// StateLen is the escrow account data size.
const StateLen = 1 + 32 + 32 + 32 + 8

// State is the escrow record.
type State struct {
	Initialized         bool
	Initializer         pubkey.PublicKey
	TempTokenAccount    pubkey.PublicKey
	ReceiveTokenAccount pubkey.PublicKey
	ExpectedAmount      uint64
}

// EncodeState renders the escrow account layout.
func (s State) EncodeState() []byte {
	data := make([]byte, StateLen)
	if s.Initialized {
		data[0] = 1
	}
	copy(data[1:33], s.Initializer[:])
	copy(data[33:65], s.TempTokenAccount[:])
	copy(data[65:97], s.ReceiveTokenAccount[:])
	binary.LittleEndian.PutUint64(data[97:105], s.ExpectedAmount)
	return data
}

// DecodeState parses the escrow account layout.
func DecodeState(data []byte) (State, error) {
	if len(data) != StateLen {
		return State{}, runtime.NewError(runtime.KindDecode, "ESC-DEC-001",
			fmt.Sprintf("escrow state must be %d bytes, got %d", StateLen, len(data)))
	}
	initializer, _ := pubkey.FromBytes(data[1:33])
	temp, _ := pubkey.FromBytes(data[33:65])
	receive, _ := pubkey.FromBytes(data[65:97])
	return State{
		Initialized:         data[0] != 0,
		Initializer:         initializer,
		TempTokenAccount:    temp,
		ReceiveTokenAccount: receive,
		ExpectedAmount:      binary.LittleEndian.Uint64(data[97:105]),
	}, nil
}

// Authority returns the program's PDA and bump.
func Authority() (pubkey.PublicKey, uint8, error) {
	return pubkey.FindProgramAddress([][]byte{AuthoritySeed}, ID)
}

func init() {
	runtime.MustRegister(runtime.Program{
		ID:      ID,
		Name:    "escrow",
		Process: process,
	})
}

func process(ic *runtime.InvokeContext) error {
	data := ic.InstructionData()
	if len(data) == 0 {
		return runtime.NewError(runtime.KindDecode, "ESC-DEC-002", "missing instruction data")
	}
	switch data[0] {
	case TagInitEscrow:
		return processInitEscrow(ic, data[1:])
	case TagExchange:
		return processExchange(ic, data[1:])
	default:
		return runtime.NewError(runtime.KindDecode, "ESC-DEC-003",
			fmt.Sprintf("unrecognized escrow instruction %d", data[0]))
	}
}

func processInitEscrow(ic *runtime.InvokeContext, body []byte) error {
	if len(body) != 8 {
		return runtime.NewError(runtime.KindDecode, "ESC-DEC-004", "malformed init escrow data")
	}
	expected := binary.LittleEndian.Uint64(body)

	initializer, err := ic.NextAccount()
	if err != nil {
		return err
	}
	tempToken, err := ic.NextAccount()
	if err != nil {
		return err
	}
	receiveToken, err := ic.NextAccount()
	if err != nil {
		return err
	}
	escrowState, err := ic.NextAccount()
	if err != nil {
		return err
	}
	rentView, err := ic.NextAccount()
	if err != nil {
		return err
	}
	tokenProgram, err := ic.NextAccount()
	if err != nil {
		return err
	}

	if !initializer.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "ESC-PRIV-001", "initializer must sign")
	}
	if tokenProgram.Key != token.ID {
		return runtime.NewError(runtime.KindState, "ESC-STATE-001", "wrong token program account")
	}
	if escrowState.Owner() != ID {
		return runtime.NewError(runtime.KindOwner, "ESC-OWN-001", "escrow account is not owned by the escrow program")
	}
	if len(escrowState.Data()) != StateLen {
		return runtime.NewError(runtime.KindState, "ESC-STATE-002",
			fmt.Sprintf("escrow account data must be %d bytes", StateLen))
	}
	existing, err := DecodeState(escrowState.Data())
	if err != nil {
		return err
	}
	if existing.Initialized {
		return runtime.NewError(runtime.KindState, "ESC-STATE-003", "escrow already initialized")
	}
	rent, err := sysvar.RentFromAccount(rentView)
	if err != nil {
		return err
	}
	if !rent.IsExempt(escrowState.Lamports(), uint64(len(escrowState.Data()))) {
		return runtime.NewError(runtime.KindFunds, "ESC-FUNDS-001", "escrow account is not rent-exempt")
	}

	state := State{
		Initialized:         true,
		Initializer:         initializer.Key,
		TempTokenAccount:    tempToken.Key,
		ReceiveTokenAccount: receiveToken.Key,
		ExpectedAmount:      expected,
	}
	escrowState.SetData(state.EncodeState())

	pda, _, err := Authority()
	if err != nil {
		return runtime.WrapError(runtime.KindInternal, "ESC-INT-001", "pda derivation failed", err)
	}
	ic.Log("Calling the token program to transfer token account ownership to the escrow authority")
	return ic.Invoke(token.NewSetAuthority(tempToken.Key, initializer.Key, pda))
}

func processExchange(ic *runtime.InvokeContext, body []byte) error {
	if len(body) != 8 {
		return runtime.NewError(runtime.KindDecode, "ESC-DEC-005", "malformed exchange data")
	}
	expectedTempAmount := binary.LittleEndian.Uint64(body)

	taker, err := ic.NextAccount()
	if err != nil {
		return err
	}
	takerSend, err := ic.NextAccount()
	if err != nil {
		return err
	}
	takerReceive, err := ic.NextAccount()
	if err != nil {
		return err
	}
	tempToken, err := ic.NextAccount()
	if err != nil {
		return err
	}
	initializerMain, err := ic.NextAccount()
	if err != nil {
		return err
	}
	initializerReceive, err := ic.NextAccount()
	if err != nil {
		return err
	}
	escrowState, err := ic.NextAccount()
	if err != nil {
		return err
	}
	tokenProgram, err := ic.NextAccount()
	if err != nil {
		return err
	}
	pdaView, err := ic.NextAccount()
	if err != nil {
		return err
	}

	if !taker.IsSigner {
		return runtime.NewError(runtime.KindPrivilege, "ESC-PRIV-002", "taker must sign")
	}
	if tokenProgram.Key != token.ID {
		return runtime.NewError(runtime.KindState, "ESC-STATE-001", "wrong token program account")
	}
	if escrowState.Owner() != ID {
		return runtime.NewError(runtime.KindOwner, "ESC-OWN-001", "escrow account is not owned by the escrow program")
	}
	state, err := DecodeState(escrowState.Data())
	if err != nil {
		return err
	}
	if !state.Initialized {
		return runtime.NewError(runtime.KindState, "ESC-STATE-004", "escrow is not initialized")
	}
	if tempToken.Key != state.TempTokenAccount {
		return runtime.NewError(runtime.KindState, "ESC-STATE-005", "temporary token account mismatch")
	}
	if initializerMain.Key != state.Initializer {
		return runtime.NewError(runtime.KindState, "ESC-STATE-006", "initializer account mismatch")
	}
	if initializerReceive.Key != state.ReceiveTokenAccount {
		return runtime.NewError(runtime.KindState, "ESC-STATE-007", "receive token account mismatch")
	}

	temp, err := token.DecodeAccount(tempToken.Data())
	if err != nil {
		return err
	}
	if temp.Amount != expectedTempAmount {
		return runtime.NewError(runtime.KindState, "ESC-STATE-008",
			fmt.Sprintf("expected %d locked tokens, found %d", expectedTempAmount, temp.Amount))
	}

	pda, bump, err := Authority()
	if err != nil {
		return runtime.WrapError(runtime.KindInternal, "ESC-INT-001", "pda derivation failed", err)
	}
	if pdaView.Key != pda {
		return runtime.NewError(runtime.KindState, "ESC-STATE-009", "escrow authority account mismatch")
	}
	seeds := [][]byte{AuthoritySeed, {bump}}

	ic.Log("Transferring %d tokens from the taker to the initializer", state.ExpectedAmount)
	if err := ic.Invoke(token.NewTransfer(takerSend.Key, initializerReceive.Key, taker.Key, state.ExpectedAmount)); err != nil {
		return err
	}

	ic.Log("Releasing %d locked tokens to the taker, signed by the escrow authority", temp.Amount)
	if err := ic.InvokeSigned(token.NewTransfer(tempToken.Key, takerReceive.Key, pda, temp.Amount), seeds); err != nil {
		return err
	}

	ic.Log("Closing the temporary token account")
	if err := ic.InvokeSigned(token.NewCloseAccount(tempToken.Key, initializerMain.Key, pda), seeds); err != nil {
		return err
	}

	// Close the escrow record itself; its rent lamports go back to the
	// initializer and the emptied account is purged on commit.
	lamports := escrowState.Lamports()
	if err := escrowState.SubLamports(lamports); err != nil {
		return err
	}
	if err := initializerMain.AddLamports(lamports); err != nil {
		return err
	}
	escrowState.SetData(make([]byte, 0))
	ic.Log("Escrow completed and closed")
	return nil
}

// NewInitEscrow builds the initialization instruction. The temporary
// token account must already hold the offered tokens with the initializer
// as its recorded authority; the escrow account must be a fresh,
// rent-exempt account owned by the escrow program.
func NewInitEscrow(initializer, tempToken, receiveToken, escrowAccount pubkey.PublicKey, expectedAmount uint64) runtime.Instruction {
	var buf bytes.Buffer
	buf.WriteByte(TagInitEscrow)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], expectedAmount)
	buf.Write(b[:])
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(initializer).Signer(),
			runtime.Meta(tempToken).Writable(),
			runtime.Meta(receiveToken),
			runtime.Meta(escrowAccount).Writable(),
			runtime.Meta(sysvar.RentID),
			runtime.Meta(token.ID),
		},
		Data: buf.Bytes(),
	}
}

// NewExchange builds the completing instruction. expectedTempAmount is
// the taker's claim of how many tokens are locked; the program rejects
// the exchange if the escrow holds a different amount.
func NewExchange(taker, takerSend, takerReceive, tempToken, initializerMain, initializerReceive, escrowAccount pubkey.PublicKey, expectedTempAmount uint64) (runtime.Instruction, error) {
	pda, _, err := Authority()
	if err != nil {
		return runtime.Instruction{}, err
	}
	var buf bytes.Buffer
	buf.WriteByte(TagExchange)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], expectedTempAmount)
	buf.Write(b[:])
	return runtime.Instruction{
		ProgramID: ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(taker).Signer(),
			runtime.Meta(takerSend).Writable(),
			runtime.Meta(takerReceive).Writable(),
			runtime.Meta(tempToken).Writable(),
			runtime.Meta(initializerMain).Writable(),
			runtime.Meta(initializerReceive).Writable(),
			runtime.Meta(escrowAccount).Writable(),
			runtime.Meta(token.ID),
			runtime.Meta(pda),
		},
		Data: buf.Bytes(),
	}, nil
}
