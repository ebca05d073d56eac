package system_test

import (
	"encoding/binary"
	"testing"

	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/ledger"
	"github.com/jacekv/minisol/programs/system"
	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

func send(t *testing.T, l *ledger.Ledger, payer *keys.Keypair, extra []*keys.Keypair, ixs ...runtime.Instruction) *ledger.Result {
	t.Helper()
	msg := runtime.Message{
		Payer:           payer.PublicKey(),
		RecentBlockhash: l.LatestBlockhash(),
		Instructions:    ixs,
	}
	tx, err := runtime.NewTransaction(msg, append([]*keys.Keypair{payer}, extra...)...)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res, err := l.ProcessTransaction(tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	return res
}

func funded(t *testing.T, l *ledger.Ledger) *keys.Keypair {
	t.Helper()
	kp, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := l.RequestAirdrop(kp.PublicKey(), 10_000_000_000); err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	return kp
}

func TestCreateAccount(t *testing.T) {
	l := ledger.New()
	payer := funded(t, l)
	fresh, _ := keys.Generate(nil)
	owner := pubkey.ProgramID("create-test-owner")

	lamports := l.MinimumBalanceForRentExemption(64)
	res := send(t, l, payer, []*keys.Keypair{fresh},
		system.NewCreateAccount(payer.PublicKey(), fresh.PublicKey(), lamports, 64, owner))
	if res.Err != nil {
		t.Fatalf("create account: %v\nlogs: %v", res.Err, res.Logs)
	}
	acct, ok := l.GetAccount(fresh.PublicKey())
	if !ok {
		t.Fatal("account not created")
	}
	if acct.Owner != owner || acct.Lamports != lamports || len(acct.Data) != 64 {
		t.Fatalf("created account malformed: %+v", acct)
	}
}

func TestCreateAccountInUseRejected(t *testing.T) {
	l := ledger.New()
	payer := funded(t, l)
	victim := funded(t, l)

	res := send(t, l, payer, []*keys.Keypair{victim},
		system.NewCreateAccount(payer.PublicKey(), victim.PublicKey(), 1000, 0, system.ID))
	if runtime.RuleID(res.Err) != "SYS-STATE-001" {
		t.Fatalf("expected SYS-STATE-001, got %v", res.Err)
	}
}

func TestCreateAccountWithSeedWrongAddress(t *testing.T) {
	l := ledger.New()
	payer := funded(t, l)
	owner := pubkey.ProgramID("seed-owner")
	wrong, _ := keys.Generate(nil)

	res := send(t, l, payer, nil,
		system.NewCreateAccountWithSeed(payer.PublicKey(), wrong.PublicKey(), payer.PublicKey(), "s", 1000, 0, owner))
	if runtime.RuleID(res.Err) != "SYS-STATE-003" {
		t.Fatalf("expected SYS-STATE-003, got %v", res.Err)
	}
}

func TestAllocateThenAssign(t *testing.T) {
	l := ledger.New()
	payer := funded(t, l)
	owner := pubkey.ProgramID("assign-test-owner")

	res := send(t, l, payer, nil,
		system.NewAllocate(payer.PublicKey(), 16),
		system.NewAssign(payer.PublicKey(), owner))
	if res.Err != nil {
		t.Fatalf("allocate+assign: %v\nlogs: %v", res.Err, res.Logs)
	}
	acct, _ := l.GetAccount(payer.PublicKey())
	if acct.Owner != owner || len(acct.Data) != 16 {
		t.Fatalf("account after assign: %+v", acct)
	}
}

func TestAssignZeroedAccount(t *testing.T) {
	l := ledger.New()
	payer := funded(t, l)
	holder := funded(t, l)
	target, _ := keys.Generate(nil)
	owner := pubkey.ProgramID("assign-test-owner")

	// An account with allocated but zeroed data may still be assigned away.
	lamports := l.MinimumBalanceForRentExemption(8)
	res := send(t, l, payer, []*keys.Keypair{target},
		system.NewCreateAccount(payer.PublicKey(), target.PublicKey(), lamports, 8, system.ID))
	if res.Err != nil {
		t.Fatalf("create: %v", res.Err)
	}
	res = send(t, l, holder, []*keys.Keypair{target},
		system.NewAssign(target.PublicKey(), owner))
	if res.Err != nil {
		t.Fatalf("assign zeroed account: %v\nlogs: %v", res.Err, res.Logs)
	}
	acct, _ := l.GetAccount(target.PublicKey())
	if acct.Owner != owner {
		t.Fatalf("assign did not change owner: %+v", acct)
	}
}

func TestCreateAccountWithSeedHugeSeedLenRejected(t *testing.T) {
	l := ledger.New()
	payer := funded(t, l)
	owner := pubkey.ProgramID("seed-owner")
	derived, err := pubkey.CreateWithSeed(payer.PublicKey(), "x", owner)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	// Declared seed length 0xFFFFFFFF with 47 trailing bytes: the size
	// check must reject it instead of slicing past the buffer.
	base := payer.PublicKey()
	data := make([]byte, 4+32+4+47)
	binary.LittleEndian.PutUint32(data[0:4], system.TagCreateAccountWithSeed)
	copy(data[4:36], base[:])
	binary.LittleEndian.PutUint32(data[36:40], 0xFFFFFFFF)

	res := send(t, l, payer, nil, runtime.Instruction{
		ProgramID: system.ID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(payer.PublicKey()).Signer().Writable(),
			runtime.Meta(derived).Writable(),
		},
		Data: data,
	})
	if runtime.RuleID(res.Err) != "SYS-DEC-005" {
		t.Fatalf("expected SYS-DEC-005, got %v", res.Err)
	}
}
