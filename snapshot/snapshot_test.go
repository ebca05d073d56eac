package snapshot_test

import (
	"bytes"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/ipfs/go-cid"

	"github.com/jacekv/minisol/blockstore"
	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/ledger"
	"github.com/jacekv/minisol/snapshot"
)

const sol = 1_000_000_000

func fundedLedger(t *testing.T) (*ledger.Ledger, *keys.Keypair) {
	t.Helper()
	l := ledger.New()
	kp, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := l.RequestAirdrop(kp.PublicKey(), 5*sol); err != nil {
		t.Fatalf("RequestAirdrop: %v", err)
	}
	return l, kp
}

func TestEncodeStateDeterministic(t *testing.T) {
	l, _ := fundedLedger(t)
	a := snapshot.EncodeState(l.ExportState())
	b := snapshot.EncodeState(l.ExportState())
	if !bytes.Equal(a, b) {
		t.Fatal("two exports of the same state encoded differently")
	}
}

func TestStateCodecRoundTrip(t *testing.T) {
	l, _ := fundedLedger(t)
	st := l.ExportState()
	got, err := snapshot.DecodeState(snapshot.EncodeState(st))
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if got.Slot != st.Slot || got.Blockhash != st.Blockhash {
		t.Fatalf("header mismatch: got slot %d hash %s", got.Slot, got.Blockhash)
	}
	if len(got.Accounts) != len(st.Accounts) {
		t.Fatalf("account count: got %d, want %d", len(got.Accounts), len(st.Accounts))
	}
	for i := range st.Accounts {
		if got.Accounts[i].Key != st.Accounts[i].Key {
			t.Fatalf("account %d key mismatch", i)
		}
		if got.Accounts[i].Account.Lamports != st.Accounts[i].Account.Lamports {
			t.Fatalf("account %d lamports mismatch", i)
		}
	}
}

func TestDecodeStateRejectsBadInput(t *testing.T) {
	l, _ := fundedLedger(t)
	good := snapshot.EncodeState(l.ExportState())

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad version", append([]byte{0x7F}, good[1:]...)},
		{"truncated", good[:len(good)-3]},
		{"trailing", append(append([]byte{}, good...), 0x00)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := snapshot.DecodeState(tc.data); err == nil {
				t.Fatal("DecodeState accepted malformed block")
			}
		})
	}
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	l, kp := fundedLedger(t)
	store := blockstore.NewMem()

	id, manifest, err := snapshot.Capture(store, l)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if manifest.Snapshot != id.String() {
		t.Fatalf("manifest snapshot %s, want %s", manifest.Snapshot, id.String())
	}
	if manifest.Slot != l.Slot() {
		t.Fatalf("manifest slot %d, want %d", manifest.Slot, l.Slot())
	}

	// Mutate, then restore the snapshot into a fresh ledger.
	if err := l.RequestAirdrop(kp.PublicKey(), sol); err != nil {
		t.Fatalf("RequestAirdrop: %v", err)
	}

	fresh := ledger.New()
	if err := snapshot.Restore(store, fresh, id); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := fresh.Balance(kp.PublicKey()); got != 5*sol {
		t.Fatalf("restored balance %d, want %d", got, 5*sol)
	}
	if fresh.Slot() != manifest.Slot {
		t.Fatalf("restored slot %d, want %d", fresh.Slot(), manifest.Slot)
	}
	if fresh.LatestBlockhash().String() != manifest.Blockhash {
		t.Fatalf("restored blockhash %s, want %s", fresh.LatestBlockhash(), manifest.Blockhash)
	}
}

func TestManifestSignAndVerify(t *testing.T) {
	l, _ := fundedLedger(t)
	store := blockstore.NewMem()
	id, manifest, err := snapshot.Capture(store, l)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	signer, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := manifest.SignEd25519(signer); err != nil {
		t.Fatalf("SignEd25519: %v", err)
	}
	pub, priv, err := mode3.GenerateKey(nil)
	if err != nil {
		t.Fatalf("mode3.GenerateKey: %v", err)
	}
	if err := manifest.SignDilithium3(pub, priv); err != nil {
		t.Fatalf("SignDilithium3: %v", err)
	}

	if err := manifest.VerifySignatures(); err != nil {
		t.Fatalf("VerifySignatures: %v", err)
	}
	block, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := manifest.VerifyBlock(block); err != nil {
		t.Fatalf("VerifyBlock: %v", err)
	}

	// Tampering with the manifest breaks both signatures.
	manifest.Slot++
	if err := manifest.VerifySignatures(); err == nil {
		t.Fatal("tampered manifest still verified")
	}
}

func TestManifestEncodeDecode(t *testing.T) {
	l, _ := fundedLedger(t)
	store := blockstore.NewMem()
	_, manifest, err := snapshot.Capture(store, l)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	signer, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := manifest.SignEd25519(signer); err != nil {
		t.Fatalf("SignEd25519: %v", err)
	}

	encoded, err := manifest.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := snapshot.DecodeManifest(encoded)
	if err != nil {
		t.Fatalf("DecodeManifest: %v", err)
	}
	if decoded.Snapshot != manifest.Snapshot || decoded.Digests != manifest.Digests {
		t.Fatal("manifest round trip changed contents")
	}
	if err := decoded.VerifySignatures(); err != nil {
		t.Fatalf("VerifySignatures after round trip: %v", err)
	}
}

func TestBundleExportImport(t *testing.T) {
	l, kp := fundedLedger(t)
	src := blockstore.NewMem()
	id, manifest, err := snapshot.Capture(src, l)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	signer, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := manifest.SignEd25519(signer); err != nil {
		t.Fatalf("SignEd25519: %v", err)
	}

	var buf bytes.Buffer
	if err := snapshot.Export(&buf, src, []cid.Cid{id}, manifest); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst, err := blockstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	got, err := snapshot.Import(bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got.Snapshot != id.String() {
		t.Fatalf("imported manifest snapshot %s, want %s", got.Snapshot, id)
	}

	fresh := ledger.New()
	if err := snapshot.Restore(dst, fresh, id); err != nil {
		t.Fatalf("Restore from imported store: %v", err)
	}
	if fresh.Balance(kp.PublicKey()) != 5*sol {
		t.Fatal("imported snapshot lost account state")
	}
}

func TestBundleExportDeterministic(t *testing.T) {
	l, _ := fundedLedger(t)
	src := blockstore.NewMem()
	id, manifest, err := snapshot.Capture(src, l)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	var a, b bytes.Buffer
	if err := snapshot.Export(&a, src, []cid.Cid{id}, manifest); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := snapshot.Export(&b, src, []cid.Cid{id}, manifest); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("two exports of the same snapshot differ byte-for-byte")
	}
}

func TestImportRejectsTamperedBundle(t *testing.T) {
	l, _ := fundedLedger(t)
	src := blockstore.NewMem()
	id, manifest, err := snapshot.Capture(src, l)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	var buf bytes.Buffer
	if err := snapshot.Export(&buf, src, []cid.Cid{id}, manifest); err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw := buf.Bytes()
	// The first block payload starts right after the 512-byte tar header.
	tampered := append([]byte{}, raw...)
	tampered[512+8] ^= 0xFF

	if _, err := snapshot.Import(bytes.NewReader(tampered), blockstore.NewMem()); err == nil {
		t.Fatal("Import accepted a tampered bundle")
	}
}
