package runtime

import (
	"crypto/sha256"
	"reflect"
	"testing"

	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/pubkey"
)

func testMessage(t *testing.T, payer pubkey.PublicKey) Message {
	t.Helper()
	return Message{
		Payer:           payer,
		RecentBlockhash: sha256.Sum256([]byte("recent")),
		Instructions: []Instruction{
			{
				ProgramID: pubkey.ProgramID("wire-test"),
				Accounts: []AccountMeta{
					Meta(payer).Signer().Writable(),
					Meta(pubkey.ProgramID("wire-target")).Writable(),
					Meta(pubkey.ProgramID("wire-readonly")),
				},
				Data: []byte{0x00, 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0},
			},
			{
				ProgramID: pubkey.ProgramID("wire-test-2"),
				Accounts:  []AccountMeta{Meta(payer).Signer()},
				Data:      []byte{0x01},
			},
		},
	}
}

func TestMessageRoundTrip(t *testing.T) {
	payer := pubkey.ProgramID("wire-payer")
	msg := testMessage(t, payer)
	decoded, err := DecodeMessage(msg.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(&msg, decoded) {
		t.Fatalf("round trip mismatch:\n  in:  %+v\n  out: %+v", msg, decoded)
	}
}

func TestDecodeMessageRejectsBadInput(t *testing.T) {
	payer := pubkey.ProgramID("wire-payer")
	msg := testMessage(t, payer)
	encoded := msg.Encode()

	cases := []struct {
		name string
		data []byte
		rule string
	}{
		{"empty", nil, "RT-WIRE-006"},
		{"bad version", append([]byte{99}, encoded[1:]...), "RT-WIRE-001"},
		{"truncated", encoded[:len(encoded)-5], "RT-WIRE-006"},
		{"trailing bytes", append(append([]byte{}, encoded...), 0xFF), "RT-WIRE-005"},
	}
	for _, tc := range cases {
		if _, err := DecodeMessage(tc.data); RuleID(err) != tc.rule {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.rule, err)
		}
	}
}

func TestTransactionSignAndVerify(t *testing.T) {
	payer, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := testMessage(t, payer.PublicKey())
	msg.Instructions = msg.Instructions[:1]
	msg.Instructions[0].Accounts[0] = Meta(payer.PublicKey()).Signer().Writable()

	tx, err := NewTransaction(msg, payer)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if tx.ID() == "" {
		t.Fatal("empty transaction id")
	}
	signers, err := tx.VerifySignatures()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, ok := signers[payer.PublicKey()]; !ok {
		t.Fatal("payer missing from verified signers")
	}

	decoded, err := DecodeTransaction(tx.Encode())
	if err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if !reflect.DeepEqual(tx, decoded) {
		t.Fatalf("transaction round trip mismatch")
	}
}

func TestTransactionRejectsWrongPayer(t *testing.T) {
	payer, _ := keys.Generate(nil)
	other, _ := keys.Generate(nil)
	msg := testMessage(t, payer.PublicKey())
	if _, err := NewTransaction(msg, other); RuleID(err) != "RT-SIG-002" {
		t.Fatalf("expected RT-SIG-002, got %v", err)
	}
	if _, err := NewTransaction(msg); RuleID(err) != "RT-SIG-001" {
		t.Fatalf("expected RT-SIG-001, got %v", err)
	}
}

func TestTamperedTransactionFailsVerification(t *testing.T) {
	payer, _ := keys.Generate(nil)
	msg := testMessage(t, payer.PublicKey())
	tx, err := NewTransaction(msg, payer)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	tx.Message.Instructions[0].Data[1] ^= 0xFF
	if _, err := tx.VerifySignatures(); RuleID(err) != "RT-SIG-003" {
		t.Fatalf("expected RT-SIG-003, got %v", err)
	}
}
