package rpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/ledger"
	"github.com/jacekv/minisol/programs/system"
	"github.com/jacekv/minisol/runtime"
)

func newBufClient(t *testing.T, l *ledger.Ledger) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterLedgerServer(srv, &Server{Ledger: l})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: 2 * time.Second}
}

func TestLedgerRPCRoundTrip(t *testing.T) {
	l := ledger.New()
	client := newBufClient(t, l)

	alice, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	bob, _ := keys.Generate(nil)

	balance, err := client.RequestAirdrop(alice.PublicKey(), 2_000_000_000)
	if err != nil {
		t.Fatalf("RequestAirdrop: %v", err)
	}
	if balance != 2_000_000_000 {
		t.Fatalf("airdrop balance: %d", balance)
	}

	blockhash, err := client.GetLatestBlockhash()
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	msg := runtime.Message{
		Payer:           alice.PublicKey(),
		RecentBlockhash: blockhash,
		Instructions: []runtime.Instruction{
			system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 1_000_000),
		},
	}
	tx, err := runtime.NewTransaction(msg, alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sim, err := client.SimulateTransaction(tx)
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}
	if !sim.Ok() {
		t.Fatalf("simulation failed: %s\nlogs: %v", sim.Err, sim.Logs)
	}
	if len(sim.Logs) == 0 {
		t.Fatal("simulation returned no logs")
	}

	st, err := client.SendTransaction(tx)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if !st.Ok() {
		t.Fatalf("send failed: %s\nlogs: %v", st.Err, st.Logs)
	}
	if st.Signature != tx.ID() {
		t.Fatalf("status signature %q, want %q", st.Signature, tx.ID())
	}

	got, err := client.GetBalance(bob.PublicKey())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if got != 1_000_000 {
		t.Fatalf("bob balance: %d", got)
	}

	acct, err := client.GetAccount(bob.PublicKey())
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Lamports != 1_000_000 || acct.Owner != system.ID {
		t.Fatalf("bob account malformed: %+v", acct)
	}

	slot, err := client.GetSlot()
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != st.Slot {
		t.Fatalf("slot %d, status slot %d", slot, st.Slot)
	}

	min, err := client.GetMinimumBalanceForRentExemption(24)
	if err != nil {
		t.Fatalf("GetMinimumBalanceForRentExemption: %v", err)
	}
	if want := l.MinimumBalanceForRentExemption(24); min != want {
		t.Fatalf("rent minimum %d, want %d", min, want)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	client := newBufClient(t, ledger.New())
	missing, _ := keys.Generate(nil)
	if _, err := client.GetAccount(missing.PublicKey()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendFailedTransactionReportsError(t *testing.T) {
	l := ledger.New()
	client := newBufClient(t, l)

	alice, _ := keys.Generate(nil)
	bob, _ := keys.Generate(nil)
	if _, err := client.RequestAirdrop(alice.PublicKey(), 1_000_000_000); err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	blockhash, err := client.GetLatestBlockhash()
	if err != nil {
		t.Fatalf("blockhash: %v", err)
	}
	msg := runtime.Message{
		Payer:           alice.PublicKey(),
		RecentBlockhash: blockhash,
		Instructions: []runtime.Instruction{
			system.NewTransfer(alice.PublicKey(), bob.PublicKey(), 5_000_000_000),
		},
	}
	tx, err := runtime.NewTransaction(msg, alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	st, err := client.SendTransaction(tx)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if st.Ok() {
		t.Fatal("overdraft transfer unexpectedly succeeded")
	}
}
