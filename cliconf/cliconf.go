// Package cliconf loads and saves the minisol CLI configuration file.
//
// The file lives at ~/.config/minisol/cli/config.yml and records the
// ledger RPC endpoint plus the default keypair, so commands work without
// repeating --url and --keypair on every invocation.
package cliconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultURL is the RPC endpoint used when no config file exists.
const DefaultURL = "127.0.0.1:8899"

// Config is the on-disk CLI configuration.
type Config struct {
	JSONRPCURL  string `yaml:"json_rpc_url"`
	KeypairPath string `yaml:"keypair_path"`
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cliconf: home directory: %w", err)
	}
	return filepath.Join(home, ".config", "minisol", "cli", "config.yml"), nil
}

// Load reads the config at path. A missing file is not an error: Load
// returns defaults so a fresh machine works without `config set`.
func Load(path string) (Config, error) {
	cfg := Config{JSONRPCURL: DefaultURL}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("cliconf: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("cliconf: parse %s: %w", path, err)
	}
	if cfg.JSONRPCURL == "" {
		cfg.JSONRPCURL = DefaultURL
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func (c Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cliconf: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cliconf: mkdir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("cliconf: write %s: %w", path, err)
	}
	return nil
}
