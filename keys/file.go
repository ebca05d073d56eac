package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// The wallet file format is a JSON array of 64 byte values: the ed25519
// seed followed by the public key. This matches the id.json files produced
// by the common wallet tooling, so keypairs are portable in both
// directions.

// WriteKeypairFile writes kp to path in the JSON wallet format with 0600
// permissions. When overwrite is false an existing file is an error.
func WriteKeypairFile(path string, kp *Keypair, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	secret := kp.SecretKey()
	ints := make([]int, len(secret))
	for i, b := range secret {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Close()
}

// ReadKeypairFile reads a JSON wallet file.
func ReadKeypairFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("keys: %s is not a JSON wallet file: %w", filepath.Base(path), err)
	}
	secret := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keys: wallet byte %d out of range: %d", i, v)
		}
		secret[i] = byte(v)
	}
	return FromSecretKey(secret)
}
