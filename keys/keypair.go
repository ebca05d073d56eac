package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/jacekv/minisol/pubkey"
)

// Keypair is an ed25519 signing key and its ledger address.
type Keypair struct {
	priv ed25519.PrivateKey
}

// Generate creates a fresh random keypair. rand may be nil, in which case
// crypto/rand is used.
func Generate(random io.Reader) (*Keypair, error) {
	if random == nil {
		random = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv}, nil
}

// FromSeed builds the keypair for a 32-byte ed25519 seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// FromSecretKey builds a keypair from the 64-byte expanded secret key
// (seed || public key), the layout used by the JSON wallet file format.
func FromSecretKey(secret []byte) (*Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keys: secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}
	kp := &Keypair{priv: ed25519.PrivateKey(append([]byte(nil), secret...))}
	// The trailing 32 bytes must be the public key for the leading seed.
	derived := ed25519.NewKeyFromSeed(kp.priv.Seed())
	if !derived.Public().(ed25519.PublicKey).Equal(kp.priv.Public().(ed25519.PublicKey)) {
		return nil, errors.New("keys: secret key public half does not match seed")
	}
	return kp, nil
}

// PublicKey returns the ledger address for this keypair.
func (k *Keypair) PublicKey() pubkey.PublicKey {
	pk, _ := pubkey.FromEd25519(k.priv.Public().(ed25519.PublicKey))
	return pk
}

// Seed returns the 32-byte ed25519 seed.
func (k *Keypair) Seed() []byte { return k.priv.Seed() }

// SecretKey returns the 64-byte expanded secret key (seed || public key).
func (k *Keypair) SecretKey() []byte {
	return append([]byte(nil), k.priv...)
}

// Sign signs message with the raw ed25519 scheme used for transactions.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Verify checks a raw ed25519 transaction signature.
func Verify(pk pubkey.PublicKey, message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), message, sig)
}

// DeriveLabelSeed deterministically derives a sublabel seed from a root
// seed. Distinct labels yield unrelated keys; the derivation is
// domain-separated from every other sha256 use in the module.
func DeriveLabelSeed(rootSeed []byte, label string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckLabel(label); err != nil {
		return nil, err
	}
	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("minisol-keystore-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("label:"))
	_, _ = h.Write([]byte(label))
	sum := h.Sum(nil)
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}
