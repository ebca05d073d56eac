package ledger_test

import (
	"testing"

	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/ledger"
	"github.com/jacekv/minisol/programs/system"
	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
	"github.com/jacekv/minisol/sysvar"
)

const sol = 1_000_000_000

func fundedWallet(t *testing.T, l *ledger.Ledger, lamports uint64) *keys.Keypair {
	t.Helper()
	kp, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := l.RequestAirdrop(kp.PublicKey(), lamports); err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	return kp
}

func sendInstructions(t *testing.T, l *ledger.Ledger, payer *keys.Keypair, extra []*keys.Keypair, ixs ...runtime.Instruction) *ledger.Result {
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

func TestGenesisState(t *testing.T) {
	l := ledger.New()
	if _, ok := l.GetAccount(sysvar.RentID); !ok {
		t.Fatal("rent sysvar missing at genesis")
	}
	if _, ok := l.GetAccount(sysvar.ClockID); !ok {
		t.Fatal("clock sysvar missing at genesis")
	}
	prog, ok := l.GetAccount(system.ID)
	if !ok {
		t.Fatal("system program account missing at genesis")
	}
	if !prog.Executable || prog.Owner != runtime.NativeLoaderID {
		t.Fatalf("system program account malformed: %+v", prog)
	}
	// 128-byte overhead, 3480 lamports per byte-year, two years.
	if got := l.MinimumBalanceForRentExemption(0); got != 128*3480*2 {
		t.Fatalf("rent exemption minimum for empty account: got %d", got)
	}
}

func TestTransferChargesFee(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 2*sol)
	bob, _ := keys.Generate(nil)

	res := sendInstructions(t, l, alice, nil,
		system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1*sol))
	if res.Err != nil {
		t.Fatalf("transfer failed: %v\nlogs: %v", res.Err, res.Logs)
	}
	if got := l.Balance(bob.PublicKey()); got != 1*sol {
		t.Fatalf("bob balance: got %d, want %d", got, uint64(1*sol))
	}
	want := uint64(2*sol) - 1*sol - ledger.FeePerSignature
	if got := l.Balance(alice.PublicKey()); got != want {
		t.Fatalf("alice balance: got %d, want %d", got, want)
	}
}

func TestFailedTransactionStillChargesFee(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 1*sol)
	bob, _ := keys.Generate(nil)

	res := sendInstructions(t, l, alice, nil,
		system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 5*sol))
	if res.Err == nil {
		t.Fatal("overdraft transfer unexpectedly succeeded")
	}
	if !runtime.IsKind(res.Err, runtime.KindFunds) {
		t.Fatalf("expected a funds error, got %v", res.Err)
	}
	if got := l.Balance(bob.PublicKey()); got != 0 {
		t.Fatalf("failed transfer credited bob %d lamports", got)
	}
	want := uint64(1*sol) - ledger.FeePerSignature
	if got := l.Balance(alice.PublicKey()); got != want {
		t.Fatalf("alice balance after failed tx: got %d, want %d", got, want)
	}
}

func TestDuplicateTransactionRejected(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 1*sol)
	bob, _ := keys.Generate(nil)

	msg := runtime.Message{
		Payer:           alice.PublicKey(),
		RecentBlockhash: l.LatestBlockhash(),
		Instructions:    []runtime.Instruction{system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1000)},
	}
	tx, err := runtime.NewTransaction(msg, alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := l.ProcessTransaction(tx); err != nil {
		t.Fatalf("first send: %v", err)
	}
	_, err = l.ProcessTransaction(tx)
	if runtime.RuleID(err) != "LED-STATE-002" {
		t.Fatalf("expected LED-STATE-002 on replay, got %v", err)
	}
}

func TestUnknownBlockhashRejected(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 1*sol)
	bob, _ := keys.Generate(nil)

	msg := runtime.Message{
		Payer:           alice.PublicKey(),
		RecentBlockhash: runtime.Hash{0xAA},
		Instructions:    []runtime.Instruction{system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1000)},
	}
	tx, err := runtime.NewTransaction(msg, alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = l.ProcessTransaction(tx)
	if runtime.RuleID(err) != "LED-STATE-001" {
		t.Fatalf("expected LED-STATE-001, got %v", err)
	}
}

func TestSimulateLeavesStateUntouched(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 1*sol)
	bob, _ := keys.Generate(nil)

	msg := runtime.Message{
		Payer:           alice.PublicKey(),
		RecentBlockhash: l.LatestBlockhash(),
		Instructions:    []runtime.Instruction{system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1000)},
	}
	tx, err := runtime.NewTransaction(msg, alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res, err := l.SimulateTransaction(tx)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("simulated transfer failed: %v", res.Err)
	}
	if len(res.Logs) == 0 {
		t.Fatal("simulation produced no logs")
	}
	if got := l.Balance(bob.PublicKey()); got != 0 {
		t.Fatalf("simulation committed state: bob has %d lamports", got)
	}
	if got := l.Balance(alice.PublicKey()); got != 1*sol {
		t.Fatalf("simulation charged the payer: %d", got)
	}

	// The same transaction is still sendable afterwards.
	if _, err := l.ProcessTransaction(tx); err != nil {
		t.Fatalf("send after simulate: %v", err)
	}
	if got := l.Balance(bob.PublicKey()); got != 1000 {
		t.Fatalf("bob balance after send: %d", got)
	}
}

func TestDrainedAccountPurged(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 1*sol)
	bob := fundedWallet(t, l, 1*sol)

	// Bob pays the fee, so Alice can be drained to exactly zero.
	res := sendInstructions(t, l, bob, []*keys.Keypair{alice},
		system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1*sol))
	if res.Err != nil {
		t.Fatalf("drain failed: %v\nlogs: %v", res.Err, res.Logs)
	}
	if _, ok := l.GetAccount(alice.PublicKey()); ok {
		t.Fatal("drained account still present")
	}
}

func TestCreateAccountWithSeed(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 2*sol)

	owner := pubkey.ProgramID("seed-owner")
	derived, err := pubkey.CreateWithSeed(alice.PublicKey(), "lesson", owner)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	space := uint64(24)
	lamports := l.MinimumBalanceForRentExemption(space)

	res := sendInstructions(t, l, alice, nil,
		system.NewCreateAccountWithSeed(alice.PublicKey(), derived, alice.PublicKey(), "lesson", lamports, space, owner))
	if res.Err != nil {
		t.Fatalf("create with seed failed: %v\nlogs: %v", res.Err, res.Logs)
	}
	acct, ok := l.GetAccount(derived)
	if !ok {
		t.Fatal("derived account not created")
	}
	if acct.Owner != owner || uint64(len(acct.Data)) != space || acct.Lamports != lamports {
		t.Fatalf("derived account malformed: %+v", acct)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 1*sol)

	st := l.ExportState()

	restored := ledger.New()
	restored.RestoreState(st)
	if got := restored.Balance(alice.PublicKey()); got != 1*sol {
		t.Fatalf("restored balance: got %d", got)
	}
	if restored.Slot() != l.Slot() {
		t.Fatalf("restored slot %d, want %d", restored.Slot(), l.Slot())
	}
	if restored.LatestBlockhash() != l.LatestBlockhash() {
		t.Fatalf("restored blockhash mismatch")
	}
}

func TestSimulateReplayedTransactionRejected(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, 2*sol)
	bob, _ := keys.Generate(nil)

	msg := runtime.Message{
		Payer:           alice.PublicKey(),
		RecentBlockhash: l.LatestBlockhash(),
		Instructions: []runtime.Instruction{
			system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1000),
		},
	}
	tx, err := runtime.NewTransaction(msg, alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := l.ProcessTransaction(tx); err != nil {
		t.Fatalf("process: %v", err)
	}

	// A signature the ledger has already recorded must fail simulation
	// the same way it would fail submission.
	if _, err := l.SimulateTransaction(tx); runtime.RuleID(err) != "LED-STATE-002" {
		t.Fatalf("expected LED-STATE-002, got %v", err)
	}
}

func TestSimulateUnderfundedPayerRejected(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, ledger.FeePerSignature-1)
	bob, _ := keys.Generate(nil)

	msg := runtime.Message{
		Payer:           alice.PublicKey(),
		RecentBlockhash: l.LatestBlockhash(),
		Instructions: []runtime.Instruction{
			system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1),
		},
	}
	tx, err := runtime.NewTransaction(msg, alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := l.SimulateTransaction(tx); runtime.RuleID(err) != "LED-FUNDS-001" {
		t.Fatalf("expected LED-FUNDS-001, got %v", err)
	}
	// The affordability check must not alter the committed balance.
	if got := l.Balance(alice.PublicKey()); got != ledger.FeePerSignature-1 {
		t.Fatalf("alice balance after simulate: %d", got)
	}
}

func TestFeeDrainedPayerPurged(t *testing.T) {
	l := ledger.New()
	alice := fundedWallet(t, l, ledger.FeePerSignature)
	bob, _ := keys.Generate(nil)

	// Execution fails (nothing left to move), the fee still burns the
	// whole balance, and the empty payer account must not linger.
	res := sendInstructions(t, l, alice, nil,
		system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1))
	if res.Err == nil {
		t.Fatal("transfer unexpectedly succeeded")
	}
	if _, ok := l.GetAccount(alice.PublicKey()); ok {
		t.Fatal("fee-drained payer account still present")
	}
}
