// Package calculator implements the arithmetic lesson program.
//
// Instruction data is a single opcode byte followed by two little-endian
// u64 operands: opcode 0x00 adds, 0x01 subtracts. The result, together
// with both operands, is written into the first instruction account, which
// must be owned by this program and writable.
package calculator

import (
	"encoding/binary"
	"fmt"

	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

// ID is the calculator program address.
var ID = pubkey.ProgramID("calculator")

// Opcodes.
const (
	OpAdd byte = 0x00
	OpSub byte = 0x01
)

// instructionLen is the exact instruction data length: opcode + 2 * u64.
const instructionLen = 1 + 8 + 8

// StateLen is the account data size: three little-endian u64 fields.
const StateLen = 24

// State is the calculation record persisted in the result account.
type State struct {
	Result uint64
	A      uint64
	B      uint64
}

// EncodeState renders the 24-byte account layout.
func (s State) EncodeState() []byte {
	data := make([]byte, StateLen)
	binary.LittleEndian.PutUint64(data[0:8], s.Result)
	binary.LittleEndian.PutUint64(data[8:16], s.A)
	binary.LittleEndian.PutUint64(data[16:24], s.B)
	return data
}

// DecodeState parses the account layout.
func DecodeState(data []byte) (State, error) {
	if len(data) != StateLen {
		return State{}, runtime.NewError(runtime.KindDecode, "CALC-DEC-001",
			fmt.Sprintf("calculator state must be %d bytes, got %d", StateLen, len(data)))
	}
	return State{
		Result: binary.LittleEndian.Uint64(data[0:8]),
		A:      binary.LittleEndian.Uint64(data[8:16]),
		B:      binary.LittleEndian.Uint64(data[16:24]),
	}, nil
}

func init() {
	runtime.MustRegister(runtime.Program{
		ID:      ID,
		Name:    "calculator",
		Process: process,
	})
}

func process(ic *runtime.InvokeContext) error {
	target, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if target.Owner() != ID {
		return runtime.NewError(runtime.KindOwner, "CALC-OWN-001", "result account is not owned by the calculator program")
	}
	if !target.IsWritable {
		return runtime.NewError(runtime.KindPrivilege, "CALC-PRIV-001", "result account must be writable")
	}

	state, err := DecodeState(target.Data())
	if err != nil {
		return err
	}

	opcode, a, b, err := decode(ic.InstructionData())
	if err != nil {
		return err
	}

	switch opcode {
	case OpAdd:
		ic.Log("Instruction: Add %d %d", a, b)
		sum := a + b
		if sum < a {
			return runtime.NewError(runtime.KindArithmetic, "CALC-MATH-001", "addition overflow")
		}
		state = State{Result: sum, A: a, B: b}
	case OpSub:
		ic.Log("Instruction: Sub %d %d", a, b)
		if b > a {
			return runtime.NewError(runtime.KindArithmetic, "CALC-MATH-002", "subtraction underflow")
		}
		state = State{Result: a - b, A: a, B: b}
	default:
		return runtime.NewError(runtime.KindDecode, "CALC-DEC-003",
			fmt.Sprintf("unrecognized opcode 0x%02x", opcode))
	}

	target.SetData(state.EncodeState())
	ic.Log("Result: %d", state.Result)
	return nil
}

func decode(data []byte) (opcode byte, a, b uint64, err error) {
	if len(data) != instructionLen {
		return 0, 0, 0, runtime.NewError(runtime.KindDecode, "CALC-DEC-002",
			fmt.Sprintf("instruction data must be %d bytes, got %d", instructionLen, len(data)))
	}
	return data[0], binary.LittleEndian.Uint64(data[1:9]), binary.LittleEndian.Uint64(data[9:17]), nil
}

func encode(opcode byte, a, b uint64) []byte {
	data := make([]byte, instructionLen)
	data[0] = opcode
	binary.LittleEndian.PutUint64(data[1:9], a)
	binary.LittleEndian.PutUint64(data[9:17], b)
	return data
}

// NewAdd builds an add instruction targeting the result account.
func NewAdd(resultAccount pubkey.PublicKey, a, b uint64) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ID,
		Accounts:  []runtime.AccountMeta{runtime.Meta(resultAccount).Writable()},
		Data:      encode(OpAdd, a, b),
	}
}

// NewSub builds a subtract instruction targeting the result account.
func NewSub(resultAccount pubkey.PublicKey, a, b uint64) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ID,
		Accounts:  []runtime.AccountMeta{runtime.Meta(resultAccount).Writable()},
		Data:      encode(OpSub, a, b),
	}
}
