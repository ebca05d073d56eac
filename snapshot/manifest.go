package snapshot

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/sha3"

	"github.com/jacekv/minisol/blockstore"
	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/ledger"
)

// Signature schemes accepted in manifests.
const (
	SchemeEd25519SHA256    = "ed25519-sha256"
	SchemeDilithium3SHA3   = "dilithium3-sha3-256"
	SchemeDilithium3SHA512 = "dilithium3-sha512"
)

// Manifest binds a snapshot CID to the ledger state it captures. The
// digests cover the raw snapshot block; signatures cover the canonical
// JSON of the manifest with its signature list empty.
type Manifest struct {
	Version   int       `json:"version"`
	Snapshot  string    `json:"snapshot"`
	Slot      uint64    `json:"slot"`
	Blockhash string    `json:"blockhash"`
	Digests   Digests   `json:"digests"`
	Sigs      []ManiSig `json:"signatures,omitempty"`
}

// Digests are base64 digests of the snapshot block under each supported
// hash.
type Digests struct {
	SHA256  string `json:"sha256"`
	SHA512  string `json:"sha512"`
	SHA3256 string `json:"sha3-256"`
}

// ManiSig is one detached manifest signature.
type ManiSig struct {
	Scheme    string `json:"scheme"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

// NewManifest builds an unsigned manifest for a stored snapshot block.
func NewManifest(id cid.Cid, st ledger.State, block []byte) Manifest {
	return Manifest{
		Version:   ManifestVersion,
		Snapshot:  id.String(),
		Slot:      st.Slot,
		Blockhash: st.Blockhash.String(),
		Digests:   digestsOf(block),
	}
}

func digestsOf(block []byte) Digests {
	s256 := sha256.Sum256(block)
	s512 := sha512.Sum512(block)
	s3 := sha3.Sum256(block)
	return Digests{
		SHA256:  base64.StdEncoding.EncodeToString(s256[:]),
		SHA512:  base64.StdEncoding.EncodeToString(s512[:]),
		SHA3256: base64.StdEncoding.EncodeToString(s3[:]),
	}
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("snapshot: unsupported hash algorithm: %q", hashAlg)
	}
}

// payload returns the canonical signing bytes: the manifest marshaled
// with an empty signature list. The struct marshals field-by-field in
// declaration order, so the bytes are deterministic.
func (m Manifest) payload() ([]byte, error) {
	m.Sigs = nil
	return json.Marshal(m)
}

// Encode renders the manifest as JSON with a trailing newline.
func (m Manifest) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// DecodeManifest parses a manifest produced by Encode.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: malformed manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return Manifest{}, fmt.Errorf("snapshot: unsupported manifest version %d", m.Version)
	}
	return m, nil
}

// SignEd25519 appends an ed25519-sha256 signature over the manifest
// payload.
func (m *Manifest) SignEd25519(kp *keys.Keypair) error {
	payload, err := m.payload()
	if err != nil {
		return err
	}
	digest := sha256.Sum256(payload)
	sig := kp.Sign(digest[:])
	m.Sigs = append(m.Sigs, ManiSig{
		Scheme:    SchemeEd25519SHA256,
		PublicKey: base64.StdEncoding.EncodeToString(kp.PublicKey().Bytes()),
		Signature: base64.StdEncoding.EncodeToString(sig),
	})
	return nil
}

// SignDilithium3 appends a dilithium3 signature over a sha3-256 digest of
// the manifest payload.
func (m *Manifest) SignDilithium3(pub *mode3.PublicKey, priv *mode3.PrivateKey) error {
	if priv == nil || pub == nil {
		return fmt.Errorf("snapshot: missing dilithium3 key")
	}
	payload, err := m.payload()
	if err != nil {
		return err
	}
	digest, err := digestFor("sha3-256", payload)
	if err != nil {
		return err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(priv, digest, sig)
	pubBytes := make([]byte, mode3.PublicKeySize)
	pub.Pack((*[mode3.PublicKeySize]byte)(pubBytes))
	m.Sigs = append(m.Sigs, ManiSig{
		Scheme:    SchemeDilithium3SHA3,
		PublicKey: base64.StdEncoding.EncodeToString(pubBytes),
		Signature: base64.StdEncoding.EncodeToString(sig),
	})
	return nil
}

// VerifyBlock checks that block matches every digest recorded in the
// manifest and the manifest's snapshot CID.
func (m Manifest) VerifyBlock(block []byte) error {
	id, err := blockCIDString(block)
	if err != nil {
		return err
	}
	if id != m.Snapshot {
		return fmt.Errorf("snapshot: block does not match manifest CID %s", m.Snapshot)
	}
	if got := digestsOf(block); got != m.Digests {
		return fmt.Errorf("snapshot: digest mismatch for %s", m.Snapshot)
	}
	return nil
}

// VerifySignatures checks every signature in the manifest against its
// recorded public key. A manifest with no signatures verifies trivially;
// callers that require signing must check len(m.Sigs).
func (m Manifest) VerifySignatures() error {
	payload, err := m.payload()
	if err != nil {
		return err
	}
	for _, sig := range m.Sigs {
		pubBytes, err := base64.StdEncoding.DecodeString(sig.PublicKey)
		if err != nil {
			return fmt.Errorf("snapshot: malformed public key: %w", err)
		}
		sigBytes, err := base64.StdEncoding.DecodeString(sig.Signature)
		if err != nil {
			return fmt.Errorf("snapshot: malformed signature: %w", err)
		}
		switch sig.Scheme {
		case SchemeEd25519SHA256:
			if len(pubBytes) != ed25519.PublicKeySize {
				return fmt.Errorf("snapshot: bad ed25519 public key length %d", len(pubBytes))
			}
			digest := sha256.Sum256(payload)
			if !ed25519.Verify(ed25519.PublicKey(pubBytes), digest[:], sigBytes) {
				return fmt.Errorf("snapshot: ed25519 signature verification failed")
			}
		case SchemeDilithium3SHA3:
			if len(pubBytes) != mode3.PublicKeySize {
				return fmt.Errorf("snapshot: bad dilithium3 public key length %d", len(pubBytes))
			}
			var pub mode3.PublicKey
			pub.Unpack((*[mode3.PublicKeySize]byte)(pubBytes))
			digest, err := digestFor("sha3-256", payload)
			if err != nil {
				return err
			}
			if !mode3.Verify(&pub, digest, sigBytes) {
				return fmt.Errorf("snapshot: dilithium3 signature verification failed")
			}
		default:
			return fmt.Errorf("snapshot: unsupported signature scheme %q", sig.Scheme)
		}
	}
	return nil
}

func blockCIDString(block []byte) (string, error) {
	id, err := blockstore.BlockCID(block)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
