package runtime

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jacekv/minisol/account"
	"github.com/jacekv/minisol/pubkey"
)

// The probe program drives the enforcement paths from inside a Process
// function. Opcode in data[0], operands after.
var probeID = pubkey.ProgramID("runtime-probe")

const (
	probeNop byte = iota
	probeWriteData
	probeDebit
	probeCredit
	probeSetOwner
	probeRecurse
	probeEscalateSigner
	probeRequireSigner
	probeSignedCPI
)

func init() {
	MustRegister(Program{ID: probeID, Name: "runtime-probe", Process: probeProcess})
}

func probeProcess(ic *InvokeContext) error {
	data := ic.InstructionData()
	switch data[0] {
	case probeNop:
		return nil
	case probeWriteData:
		v, err := ic.Account(0)
		if err != nil {
			return err
		}
		v.SetData([]byte{1, 2, 3})
		return nil
	case probeDebit:
		v, err := ic.Account(0)
		if err != nil {
			return err
		}
		return v.SubLamports(binary.LittleEndian.Uint64(data[1:9]))
	case probeCredit:
		v, err := ic.Account(0)
		if err != nil {
			return err
		}
		return v.AddLamports(binary.LittleEndian.Uint64(data[1:9]))
	case probeSetOwner:
		v, err := ic.Account(0)
		if err != nil {
			return err
		}
		owner, err := pubkey.FromBytes(data[1:33])
		if err != nil {
			return err
		}
		v.SetOwner(owner)
		return nil
	case probeRecurse:
		metas := make([]AccountMeta, 0, ic.NumAccounts())
		for i := 0; i < ic.NumAccounts(); i++ {
			v, _ := ic.Account(i)
			m := Meta(v.Key)
			if v.IsSigner {
				m = m.Signer()
			}
			if v.IsWritable {
				m = m.Writable()
			}
			metas = append(metas, m)
		}
		return ic.Invoke(Instruction{ProgramID: probeID, Accounts: metas, Data: data})
	case probeEscalateSigner:
		v, err := ic.Account(1)
		if err != nil {
			return err
		}
		return ic.Invoke(Instruction{
			ProgramID: probeID,
			Accounts:  []AccountMeta{Meta(v.Key).Signer(), Meta(probeID)},
			Data:      []byte{probeNop},
		})
	case probeRequireSigner:
		v, err := ic.Account(0)
		if err != nil {
			return err
		}
		if !v.IsSigner {
			return NewError(KindPrivilege, "PROBE-PRIV-001", "account 0 must sign")
		}
		return nil
	case probeSignedCPI:
		v, err := ic.Account(1)
		if err != nil {
			return err
		}
		seeds := [][]byte{[]byte("vault"), {data[1]}}
		return ic.InvokeSigned(Instruction{
			ProgramID: probeID,
			Accounts:  []AccountMeta{Meta(v.Key).Signer(), Meta(probeID)},
			Data:      []byte{probeRequireSigner},
		}, seeds)
	}
	return NewError(KindDecode, "PROBE-DEC-001", "bad probe opcode")
}

func newTestTx(accts map[pubkey.PublicKey]*account.Account, signers ...pubkey.PublicKey) *TxContext {
	set := make(map[pubkey.PublicKey]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	return NewTxContext(func(pk pubkey.PublicKey) (*account.Account, bool) {
		a, ok := accts[pk]
		return a, ok
	}, set)
}

func probeAccount() *account.Account {
	return &account.Account{Lamports: 1, Owner: NativeLoaderID, Executable: true}
}

func debitData(op byte, lamports uint64) []byte {
	data := make([]byte, 9)
	data[0] = op
	binary.LittleEndian.PutUint64(data[1:], lamports)
	return data
}

func wantRule(t *testing.T, err error, kind Kind, rule string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s, got nil", kind, rule)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected kind %s, got %v (kind %s)", kind, err, KindOf(err))
	}
	if got := RuleID(err); got != rule {
		t.Fatalf("expected rule %s, got %s (%v)", rule, got, err)
	}
}

func TestMissingTopLevelSignature(t *testing.T) {
	target := pubkey.ProgramID("unsigned-target")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{probeID: probeAccount()})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(target).Signer()},
		Data:      []byte{probeNop},
	})
	wantRule(t, err, KindPrivilege, "RT-PRIV-001")
}

func TestUnknownProgram(t *testing.T) {
	tx := newTestTx(nil)
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: pubkey.ProgramID("never-registered"),
		Data:      []byte{probeNop},
	})
	wantRule(t, err, KindProgram, "RT-PROG-001")
}

func TestDataWriteByOwner(t *testing.T) {
	target := pubkey.ProgramID("probe-owned")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		target:  {Lamports: 100, Owner: probeID, Data: make([]byte, 3)},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(target).Writable()},
		Data:      []byte{probeWriteData},
	})
	if err != nil {
		t.Fatalf("owner write failed: %v", err)
	}
	if got := tx.Account(target).Data; !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("data not written, got %v", got)
	}
}

func TestDataWriteByNonOwnerRejected(t *testing.T) {
	target := pubkey.ProgramID("system-owned")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		target:  {Lamports: 100, Owner: SystemProgramID, Data: make([]byte, 3)},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(target).Writable()},
		Data:      []byte{probeWriteData},
	})
	wantRule(t, err, KindOwner, "RT-OWN-001")
}

func TestUnwritableAccountRejected(t *testing.T) {
	target := pubkey.ProgramID("readonly-target")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		target:  {Lamports: 100, Owner: probeID, Data: make([]byte, 3)},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(target)},
		Data:      []byte{probeWriteData},
	})
	wantRule(t, err, KindPrivilege, "RT-PRIV-004")
}

func TestExecutableDataImmutable(t *testing.T) {
	target := pubkey.ProgramID("frozen-program")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		target:  {Lamports: 100, Owner: probeID, Data: make([]byte, 3), Executable: true},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(target).Writable()},
		Data:      []byte{probeWriteData},
	})
	wantRule(t, err, KindOwner, "RT-OWN-004")
}

func TestDebitByNonOwnerRejected(t *testing.T) {
	target := pubkey.ProgramID("debit-victim")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		target:  {Lamports: 100, Owner: SystemProgramID},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(target).Writable()},
		Data:      debitData(probeDebit, 50),
	})
	wantRule(t, err, KindFunds, "RT-FUNDS-001")
}

func TestLamportConservation(t *testing.T) {
	target := pubkey.ProgramID("credit-from-nowhere")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		target:  {Lamports: 100, Owner: SystemProgramID},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(target).Writable()},
		Data:      debitData(probeCredit, 50),
	})
	wantRule(t, err, KindFunds, "RT-FUNDS-002")
}

func TestOwnerReassignmentNeedsZeroedData(t *testing.T) {
	newOwner := pubkey.ProgramID("next-owner")
	data := make([]byte, 33)
	data[0] = probeSetOwner
	copy(data[1:], newOwner[:])

	dirty := pubkey.ProgramID("dirty-account")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		dirty:   {Lamports: 100, Owner: probeID, Data: []byte{9}},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(dirty).Writable()},
		Data:      data,
	})
	wantRule(t, err, KindOwner, "RT-OWN-002")

	clean := pubkey.ProgramID("clean-account")
	tx = newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		clean:   {Lamports: 100, Owner: probeID, Data: make([]byte, 4)},
	})
	err = tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(clean).Writable()},
		Data:      data,
	})
	if err != nil {
		t.Fatalf("reassignment of zeroed account failed: %v", err)
	}
	if got := tx.Account(clean).Owner; got != newOwner {
		t.Fatalf("owner not reassigned, got %s", got)
	}
}

func TestInvokeDepthLimit(t *testing.T) {
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{probeID: probeAccount()})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(probeID)},
		Data:      []byte{probeRecurse},
	})
	wantRule(t, err, KindProgram, "RT-PROG-002")
}

func TestSignerEscalationBlocked(t *testing.T) {
	victim := pubkey.ProgramID("escalation-victim")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID: probeAccount(),
		victim:  {Lamports: 100, Owner: SystemProgramID},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(probeID), Meta(victim)},
		Data:      []byte{probeEscalateSigner},
	})
	wantRule(t, err, KindPrivilege, "RT-PRIV-002")
}

func TestInvokeSignedGrantsPDASigner(t *testing.T) {
	pda, bump, err := pubkey.FindProgramAddress([][]byte{[]byte("vault")}, probeID)
	if err != nil {
		t.Fatalf("find program address: %v", err)
	}
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{probeID: probeAccount()})
	err = tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(probeID), Meta(pda)},
		Data:      []byte{probeSignedCPI, bump},
	})
	if err != nil {
		t.Fatalf("signed invocation failed: %v", err)
	}
}

func TestInvokeRequiresAccountsPassedToCaller(t *testing.T) {
	stranger := pubkey.ProgramID("not-passed")
	tx := newTestTx(map[pubkey.PublicKey]*account.Account{
		probeID:  probeAccount(),
		stranger: {Lamports: 100, Owner: SystemProgramID},
	})
	err := tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Accounts:  []AccountMeta{Meta(probeID), Meta(stranger)},
		Data:      []byte{probeEscalateSigner},
	})
	// stranger was passed, but the CPI marks it signer without a caller
	// signature.
	wantRule(t, err, KindPrivilege, "RT-PRIV-002")

	tx = newTestTx(map[pubkey.PublicKey]*account.Account{probeID: probeAccount()})
	err = tx.ExecuteInstruction(Instruction{
		ProgramID: probeID,
		Data:      []byte{probeRecurse},
	})
	wantRule(t, err, KindPrivilege, "RT-PRIV-006")
}
