// Package ledger implements the single-node in-memory bank: committed
// account state, a slot counter with a hash chain standing in for block
// production, fee collection, and transaction processing on top of the
// runtime's ownership rules.
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/jacekv/minisol/account"
	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
	"github.com/jacekv/minisol/sysvar"
)

// FeePerSignature is the flat fee charged to the payer for each
// signature on a processed transaction.
const FeePerSignature uint64 = 5000

// blockhashWindow is how many recent blockhashes stay valid for new
// transactions.
const blockhashWindow = 150

// genesisSeed keys the first blockhash in the chain.
const genesisSeed = "minisol-genesis"

// Result reports the outcome of one processed or simulated transaction.
// Err is the execution failure, if any; a transaction with a non-nil Err
// was still accepted and charged its fee.
type Result struct {
	Signature string
	Slot      uint64
	Logs      []string
	Err       error
}

// Ledger is the bank. All methods are safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	accounts map[pubkey.PublicKey]*account.Account

	slot      uint64
	blockhash runtime.Hash
	recent    []runtime.Hash
	recentSet map[runtime.Hash]struct{}

	seen map[string]struct{}

	rent sysvar.Rent
}

// New builds a genesis ledger: the rent and clock sysvars are
// materialized, and every registered program gets an executable account
// owned by the native loader.
func New() *Ledger {
	l := &Ledger{
		accounts:  make(map[pubkey.PublicKey]*account.Account),
		recentSet: make(map[runtime.Hash]struct{}),
		seen:      make(map[string]struct{}),
		rent:      sysvar.DefaultRent(),
	}
	l.blockhash = sha256.Sum256([]byte(genesisSeed))
	l.pushBlockhash(l.blockhash)

	rentData := l.rent.Encode()
	l.accounts[sysvar.RentID] = &account.Account{
		Lamports: l.rent.MinimumBalance(uint64(len(rentData))),
		Owner:    sysvar.OwnerID,
		Data:     rentData,
	}
	clockData := sysvar.Clock{Slot: 0}.Encode()
	l.accounts[sysvar.ClockID] = &account.Account{
		Lamports: l.rent.MinimumBalance(uint64(len(clockData))),
		Owner:    sysvar.OwnerID,
		Data:     clockData,
	}
	for _, prog := range runtime.Programs() {
		l.accounts[prog.ID] = &account.Account{
			Lamports:   1,
			Owner:      runtime.NativeLoaderID,
			Data:       []byte(prog.Name),
			Executable: true,
		}
	}
	return l
}

// GetAccount returns a copy of the committed account, if it exists.
func (l *Ledger) GetAccount(pk pubkey.PublicKey) (*account.Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[pk]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Balance returns the committed lamport balance, zero for unknown
// accounts.
func (l *Ledger) Balance(pk pubkey.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.accounts[pk]; ok {
		return acct.Lamports
	}
	return 0
}

// Slot returns the current slot.
func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

// LatestBlockhash returns the tip of the hash chain, for building new
// messages.
func (l *Ledger) LatestBlockhash() runtime.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockhash
}

// MinimumBalanceForRentExemption returns the lamports an account with
// dataLen bytes of data must hold to be rent-exempt.
func (l *Ledger) MinimumBalanceForRentExemption(dataLen uint64) uint64 {
	return l.rent.MinimumBalance(dataLen)
}

// RequestAirdrop mints lamports into pk, creating the account when it
// does not exist. Airdrops bypass fees and signatures; they exist so the
// lessons can fund wallets.
func (l *Ledger) RequestAirdrop(pk pubkey.PublicKey, lamports uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[pk]
	if !ok {
		acct = account.New(0, 0, runtime.SystemProgramID)
		l.accounts[pk] = acct
	}
	if acct.Lamports+lamports < acct.Lamports {
		return runtime.NewError(runtime.KindArithmetic, "LED-MATH-001", "airdrop overflows balance")
	}
	acct.Lamports += lamports
	l.advanceSlot()
	return nil
}

// ProcessTransaction validates, executes, and commits one transaction.
//
// Validation failures (bad signature, unknown blockhash, replayed
// signature, payer unable to cover the fee) reject the transaction
// outright and return an error. Once validation passes the fee is
// charged unconditionally; an execution failure is reported through
// Result.Err with all account effects other than the fee discarded.
func (l *Ledger) ProcessTransaction(tx *runtime.Transaction) (*Result, error) {
	signers, err := tx.VerifySignatures()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.recentSet[tx.Message.RecentBlockhash]; !ok {
		return nil, runtime.NewError(runtime.KindState, "LED-STATE-001",
			fmt.Sprintf("blockhash %s not found", tx.Message.RecentBlockhash))
	}
	id := tx.ID()
	if _, ok := l.seen[id]; ok {
		return nil, runtime.NewError(runtime.KindState, "LED-STATE-002",
			"transaction already processed")
	}

	fee := FeePerSignature * uint64(len(tx.Signatures))
	payer, ok := l.accounts[tx.Message.Payer]
	if !ok || payer.Lamports < fee {
		return nil, runtime.NewError(runtime.KindFunds, "LED-FUNDS-001",
			fmt.Sprintf("payer cannot cover the %d lamport fee", fee))
	}
	payer.Lamports -= fee
	l.seen[id] = struct{}{}

	res := &Result{Signature: id}
	txc, execErr := l.execute(tx.Message, signers)
	if execErr == nil {
		l.commit(txc.Touched())
	}
	// The fee alone can drain the payer; commit only purges accounts
	// the instructions touched.
	if acct, ok := l.accounts[tx.Message.Payer]; ok && acct.Lamports == 0 {
		delete(l.accounts, tx.Message.Payer)
	}
	res.Err = execErr
	res.Logs = txc.Logs()

	l.advanceSlot()
	res.Slot = l.slot
	return res, nil
}

// SimulateTransaction runs the full ProcessTransaction pipeline and
// discards every effect: the same validation (signatures, blockhash,
// replay, fee affordability), the same fee-debited view during
// execution. Nothing is committed and the signature is not recorded,
// so the same transaction can be sent afterwards.
func (l *Ledger) SimulateTransaction(tx *runtime.Transaction) (*Result, error) {
	signers, err := tx.VerifySignatures()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.recentSet[tx.Message.RecentBlockhash]; !ok {
		return nil, runtime.NewError(runtime.KindState, "LED-STATE-001",
			fmt.Sprintf("blockhash %s not found", tx.Message.RecentBlockhash))
	}
	id := tx.ID()
	if _, ok := l.seen[id]; ok {
		return nil, runtime.NewError(runtime.KindState, "LED-STATE-002",
			"transaction already processed")
	}

	fee := FeePerSignature * uint64(len(tx.Signatures))
	payer, ok := l.accounts[tx.Message.Payer]
	if !ok || payer.Lamports < fee {
		return nil, runtime.NewError(runtime.KindFunds, "LED-FUNDS-001",
			fmt.Sprintf("payer cannot cover the %d lamport fee", fee))
	}

	// Execution must see the post-fee payer balance, exactly as a real
	// run would. Restore it before returning.
	payer.Lamports -= fee
	txc, execErr := l.execute(tx.Message, signers)
	payer.Lamports += fee

	return &Result{
		Signature: id,
		Slot:      l.slot,
		Logs:      txc.Logs(),
		Err:       execErr,
	}, nil
}

// execute runs every instruction of msg over a fresh working set. The
// caller holds the lock.
func (l *Ledger) execute(msg runtime.Message, signers map[pubkey.PublicKey]struct{}) (*runtime.TxContext, error) {
	load := func(pk pubkey.PublicKey) (*account.Account, bool) {
		acct, ok := l.accounts[pk]
		return acct, ok
	}
	txc := runtime.NewTxContext(load, signers)
	for i, ix := range msg.Instructions {
		if err := txc.ExecuteInstruction(ix); err != nil {
			return txc, runtime.WrapError(runtime.KindOf(err), runtime.RuleID(err),
				fmt.Sprintf("instruction %d failed: %v", i, err), err)
		}
	}
	return txc, nil
}

// commit folds the working set into committed state, purging accounts
// drained to zero lamports. The caller holds the lock.
func (l *Ledger) commit(touched map[pubkey.PublicKey]*account.Account) {
	for pk, acct := range touched {
		if acct.Lamports == 0 {
			delete(l.accounts, pk)
			continue
		}
		l.accounts[pk] = acct
	}
}

// advanceSlot moves the chain forward one slot and refreshes the clock
// sysvar. The caller holds the lock.
func (l *Ledger) advanceSlot() {
	l.slot++
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], l.slot)
	h := sha256.New()
	h.Write(l.blockhash[:])
	h.Write(buf[:])
	copy(l.blockhash[:], h.Sum(nil))
	l.pushBlockhash(l.blockhash)

	if clock, ok := l.accounts[sysvar.ClockID]; ok {
		clock.Data = sysvar.Clock{Slot: l.slot}.Encode()
	}
}

func (l *Ledger) pushBlockhash(h runtime.Hash) {
	l.recent = append(l.recent, h)
	l.recentSet[h] = struct{}{}
	if len(l.recent) > blockhashWindow {
		evicted := l.recent[0]
		l.recent = l.recent[1:]
		delete(l.recentSet, evicted)
	}
}

// AccountRecord is one committed account in a state export, keyed for
// deterministic ordering.
type AccountRecord struct {
	Key     pubkey.PublicKey
	Account account.Account
}

// State is a point-in-time export of the ledger, suitable for snapshot
// encoding. Accounts are sorted by address.
type State struct {
	Slot      uint64
	Blockhash runtime.Hash
	Accounts  []AccountRecord
}

// ExportState captures the committed state with accounts in address
// order, so two exports of the same ledger are byte-for-byte comparable
// after encoding.
func (l *Ledger) ExportState() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := State{Slot: l.slot, Blockhash: l.blockhash}
	for pk, acct := range l.accounts {
		st.Accounts = append(st.Accounts, AccountRecord{Key: pk, Account: *acct.Clone()})
	}
	sort.Slice(st.Accounts, func(i, j int) bool {
		return string(st.Accounts[i].Key[:]) < string(st.Accounts[j].Key[:])
	})
	return st
}

// RestoreState replaces the ledger's committed state with st. The
// blockhash window restarts from the restored tip, and previously seen
// signatures are forgotten.
func (l *Ledger) RestoreState(st State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = make(map[pubkey.PublicKey]*account.Account, len(st.Accounts))
	for _, rec := range st.Accounts {
		acct := rec.Account
		l.accounts[rec.Key] = acct.Clone()
	}
	l.slot = st.Slot
	l.blockhash = st.Blockhash
	l.recent = nil
	l.recentSet = make(map[runtime.Hash]struct{})
	l.pushBlockhash(st.Blockhash)
	l.seen = make(map[string]struct{})
}
