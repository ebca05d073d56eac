package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is a simple local-first wallet store.
//
// Layout:
//
//	<dir>/<name>/id.json            root wallet
//	<dir>/<name>/labels/<label>.json  deterministic sublabel wallets
//
// Wallet files are JSON secret-key arrays with 0600 permissions.
type KeyStore struct {
	Directory string
}

// WalletEntry describes one stored wallet and its sublabels.
type WalletEntry struct {
	Name   string
	Labels []string
}

// DefaultDirectory returns ~/.minisol/keys.
func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".minisol", "keys"), nil
}

// Open returns a KeyStore rooted at directory, falling back to
// DefaultDirectory when directory is empty.
func Open(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "id.json")
}

func (ks *KeyStore) labelPath(name, label string) string {
	return filepath.Join(ks.Directory, name, "labels", label+".json")
}

// CheckName validates a wallet name: [A-Za-z0-9_-]+ only.
func CheckName(name string) error {
	if name == "" {
		return errors.New("keys: wallet name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("keys: invalid character %q in wallet name", char)
	}
	return nil
}

// CheckLabel validates a sublabel with the same character set as names.
func CheckLabel(label string) error {
	if label == "" {
		return errors.New("keys: label cannot be empty")
	}
	for _, char := range label {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("keys: invalid character %q in label", char)
	}
	return nil
}

// InitWallet stores a root wallet under name. When seed is nil a random
// keypair is generated. Returns the stored keypair and its file path.
func (ks *KeyStore) InitWallet(name string, seed []byte, overwrite bool) (*Keypair, string, error) {
	if err := CheckName(name); err != nil {
		return nil, "", err
	}
	var kp *Keypair
	var err error
	if seed == nil {
		kp, err = Generate(nil)
	} else {
		kp, err = FromSeed(seed)
	}
	if err != nil {
		return nil, "", err
	}
	path := ks.rootPath(name)
	if err := WriteKeypairFile(path, kp, overwrite); err != nil {
		return nil, "", err
	}
	return kp, path, nil
}

// DeriveWallet derives and stores a sublabel wallet from the named root.
func (ks *KeyStore) DeriveWallet(from, label string, overwrite bool) (*Keypair, string, error) {
	if err := CheckName(from); err != nil {
		return nil, "", err
	}
	if err := CheckLabel(label); err != nil {
		return nil, "", err
	}
	root, err := ReadKeypairFile(ks.rootPath(from))
	if err != nil {
		return nil, "", err
	}
	seed, err := DeriveLabelSeed(root.Seed(), label)
	if err != nil {
		return nil, "", err
	}
	kp, err := FromSeed(seed)
	if err != nil {
		return nil, "", err
	}
	path := ks.labelPath(from, label)
	if err := WriteKeypairFile(path, kp, overwrite); err != nil {
		return nil, "", err
	}
	return kp, path, nil
}

// Load resolves a keypair from, in priority order: an explicit wallet file
// path, or a stored wallet name with optional sublabel.
func (ks *KeyStore) Load(walletFile, name, label string) (*Keypair, error) {
	if walletFile != "" {
		return ReadKeypairFile(walletFile)
	}
	if name != "" {
		if err := CheckName(name); err != nil {
			return nil, err
		}
		if label == "" {
			return ReadKeypairFile(ks.rootPath(name))
		}
		if err := CheckLabel(label); err != nil {
			return nil, err
		}
		return ReadKeypairFile(ks.labelPath(name, label))
	}
	return nil, errors.New("keys: no wallet specified")
}

// List enumerates stored wallets, sorted by name.
func (ks *KeyStore) List() ([]WalletEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []WalletEntry
	for _, name := range names {
		labelsDir := filepath.Join(ks.Directory, name, "labels")
		labelEntries, lerr := os.ReadDir(labelsDir)
		var labels []string
		if lerr == nil {
			for _, le := range labelEntries {
				if le.IsDir() {
					continue
				}
				if strings.HasSuffix(le.Name(), ".json") {
					labels = append(labels, strings.TrimSuffix(le.Name(), ".json"))
				}
			}
			sort.Strings(labels)
		}
		result = append(result, WalletEntry{Name: name, Labels: labels})
	}
	return result, nil
}
