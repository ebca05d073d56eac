// Package greeting implements the hello-world lesson program: a u32
// counter of how many times the greeted account has been visited.
// Instruction data is ignored.
package greeting

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

// ID is the greeting program address.
var ID = pubkey.ProgramID("greeting")

// StateLen is the account data size: one little-endian u32 counter.
const StateLen = 4

func init() {
	runtime.MustRegister(runtime.Program{
		ID:      ID,
		Name:    "greeting",
		Process: process,
	})
}

func process(ic *runtime.InvokeContext) error {
	ic.Log("Hello World program entrypoint")

	target, err := ic.NextAccount()
	if err != nil {
		return err
	}
	if target.Owner() != ID {
		return runtime.NewError(runtime.KindOwner, "GREET-OWN-001", "greeted account does not have the correct owner")
	}
	if !target.IsWritable {
		return runtime.NewError(runtime.KindPrivilege, "GREET-PRIV-001", "greeted account must be writable")
	}

	counter, err := DecodeCounter(target.Data())
	if err != nil {
		return err
	}
	if counter == math.MaxUint32 {
		return runtime.NewError(runtime.KindArithmetic, "GREET-MATH-001", "greeting counter overflow")
	}
	counter++

	data := make([]byte, StateLen)
	binary.LittleEndian.PutUint32(data, counter)
	target.SetData(data)

	ic.Log("Greeted %d time(s)!", counter)
	return nil
}

// DecodeCounter parses the greeting account layout.
func DecodeCounter(data []byte) (uint32, error) {
	if len(data) != StateLen {
		return 0, runtime.NewError(runtime.KindDecode, "GREET-DEC-001",
			fmt.Sprintf("greeting state must be %d bytes, got %d", StateLen, len(data)))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// NewGreet builds the instruction greeting target.
func NewGreet(target pubkey.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ID,
		Accounts:  []runtime.AccountMeta{runtime.Meta(target).Writable()},
	}
}
