package runtime

import (
	"fmt"

	"github.com/jacekv/minisol/account"
	"github.com/jacekv/minisol/pubkey"
)

// NativeLoaderID owns the executable accounts that stand in for native
// programs on the ledger.
var NativeLoaderID = pubkey.MustFromBase58("NativeLoader1111111111111111111111111111111")

// MaxInvokeDepth bounds cross-program invocation nesting. The top-level
// instruction runs at depth 1.
const MaxInvokeDepth = 4

// TxContext holds the working state for one transaction: mutable copies of
// every account the transaction touches, the set of verified signers, and
// the program log. Nothing escapes to the ledger until the owner commits
// the touched set.
type TxContext struct {
	load    func(pubkey.PublicKey) (*account.Account, bool)
	working map[pubkey.PublicKey]*account.Account
	signers map[pubkey.PublicKey]struct{}
	logs    LogCollector
}

// NewTxContext builds a context over a load function returning committed
// account state and the set of transaction signers.
func NewTxContext(load func(pubkey.PublicKey) (*account.Account, bool), signers map[pubkey.PublicKey]struct{}) *TxContext {
	return &TxContext{
		load:    load,
		working: make(map[pubkey.PublicKey]*account.Account),
		signers: signers,
	}
}

// Account returns the working copy for pk, materializing a fresh empty
// system-owned account when the ledger has no record.
func (tx *TxContext) Account(pk pubkey.PublicKey) *account.Account {
	if acct, ok := tx.working[pk]; ok {
		return acct
	}
	var acct *account.Account
	if committed, ok := tx.load(pk); ok {
		acct = committed.Clone()
	} else {
		acct = account.New(0, 0, SystemProgramID)
	}
	tx.working[pk] = acct
	return acct
}

// Touched returns every working account, keyed by address.
func (tx *TxContext) Touched() map[pubkey.PublicKey]*account.Account {
	return tx.working
}

// Logs returns the program log collected so far.
func (tx *TxContext) Logs() []string { return tx.logs.Entries() }

// AccountView is a program's handle on one instruction account. Mutations
// go to the transaction's working copy; the runtime verifies them against
// the ownership rules after the program returns.
type AccountView struct {
	Key        pubkey.PublicKey
	IsSigner   bool
	IsWritable bool

	acct *account.Account
}

func (v *AccountView) Lamports() uint64            { return v.acct.Lamports }
func (v *AccountView) SetLamports(lamports uint64) { v.acct.Lamports = lamports }

// AddLamports credits the account, guarding against overflow.
func (v *AccountView) AddLamports(delta uint64) error {
	if v.acct.Lamports+delta < v.acct.Lamports {
		return NewError(KindArithmetic, "RT-MATH-001", "lamport balance overflow")
	}
	v.acct.Lamports += delta
	return nil
}

// SubLamports debits the account, guarding against underflow.
func (v *AccountView) SubLamports(delta uint64) error {
	if delta > v.acct.Lamports {
		return NewError(KindFunds, "RT-FUNDS-003",
			fmt.Sprintf("insufficient lamports: have %d, need %d", v.acct.Lamports, delta))
	}
	v.acct.Lamports -= delta
	return nil
}

// Data returns the live data buffer. Writes through it mutate the working
// copy directly.
func (v *AccountView) Data() []byte { return v.acct.Data }

// SetData replaces the data buffer.
func (v *AccountView) SetData(data []byte) { v.acct.Data = data }

func (v *AccountView) Owner() pubkey.PublicKey         { return v.acct.Owner }
func (v *AccountView) SetOwner(owner pubkey.PublicKey) { v.acct.Owner = owner }
func (v *AccountView) Executable() bool                { return v.acct.Executable }

// InvokeContext is the per-instruction execution frame handed to a
// program's Process function.
type InvokeContext struct {
	// ProgramID is the address of the executing program.
	ProgramID pubkey.PublicKey

	tx         *TxContext
	views      []*AccountView
	data       []byte
	depth      int
	pdaSigners map[pubkey.PublicKey]struct{}
	cursor     int
}

// InstructionData returns the raw instruction data for this invocation.
func (ic *InvokeContext) InstructionData() []byte { return ic.data }

// NumAccounts returns how many accounts the instruction passed.
func (ic *InvokeContext) NumAccounts() int { return len(ic.views) }

// Account returns the i-th instruction account.
func (ic *InvokeContext) Account(i int) (*AccountView, error) {
	if i < 0 || i >= len(ic.views) {
		return nil, NewError(KindState, "RT-ACC-001", "not enough account keys")
	}
	return ic.views[i], nil
}

// NextAccount returns instruction accounts in order, one per call.
func (ic *InvokeContext) NextAccount() (*AccountView, error) {
	v, err := ic.Account(ic.cursor)
	if err != nil {
		return nil, err
	}
	ic.cursor++
	return v, nil
}

// Log appends a line to the transaction's program log.
func (ic *InvokeContext) Log(format string, args ...any) {
	ic.tx.logs.push("Program log: " + fmt.Sprintf(format, args...))
}

// Invoke runs a cross-program instruction with the caller's privileges.
func (ic *InvokeContext) Invoke(ix Instruction) error {
	return ic.invoke(ix, nil)
}

// InvokeSigned runs a cross-program instruction, additionally granting
// signer privilege to every program address derived from the caller's
// program ID and one of the seed groups (each group including its bump).
func (ic *InvokeContext) InvokeSigned(ix Instruction, seedGroups ...[][]byte) error {
	derived := make(map[pubkey.PublicKey]struct{}, len(seedGroups))
	for _, seeds := range seedGroups {
		pda, err := pubkey.CreateProgramAddress(seeds, ic.ProgramID)
		if err != nil {
			return WrapError(KindPrivilege, "RT-PDA-001", "invalid signer seeds", err)
		}
		derived[pda] = struct{}{}
	}
	return ic.invoke(ix, derived)
}

func (ic *InvokeContext) invoke(ix Instruction, derived map[pubkey.PublicKey]struct{}) error {
	if ic.depth+1 > MaxInvokeDepth {
		return NewError(KindProgram, "RT-PROG-002",
			fmt.Sprintf("invocation depth limit %d exceeded", MaxInvokeDepth))
	}

	callerAccounts := make(map[pubkey.PublicKey]*AccountView, len(ic.views))
	for _, v := range ic.views {
		callerAccounts[v.Key] = v
	}
	if _, ok := callerAccounts[ix.ProgramID]; !ok {
		return NewError(KindPrivilege, "RT-PRIV-006",
			fmt.Sprintf("program account %s not passed to caller", ix.ProgramID))
	}

	// Callee privileges must be a subset of the caller's, except for PDAs
	// the caller just signed for.
	for _, meta := range ix.Accounts {
		callerView, ok := callerAccounts[meta.PublicKey]
		if !ok {
			return NewError(KindPrivilege, "RT-PRIV-005",
				fmt.Sprintf("account %s not passed to caller", meta.PublicKey))
		}
		if meta.IsSigner && !callerView.IsSigner {
			if _, pda := derived[meta.PublicKey]; !pda {
				return NewError(KindPrivilege, "RT-PRIV-002",
					fmt.Sprintf("signer privilege escalation for %s", meta.PublicKey))
			}
		}
		if meta.IsWritable && !callerView.IsWritable {
			return NewError(KindPrivilege, "RT-PRIV-003",
				fmt.Sprintf("writable privilege escalation for %s", meta.PublicKey))
		}
	}

	return executeInstruction(ic.tx, ix, ic.depth+1, derived)
}
