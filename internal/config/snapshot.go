package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SnapshotConfig returns a copy of config safe to persist: secrets replaced
// with source metadata only. Snapshots must never contain plaintext
// secrets.
func SnapshotConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	c.Identity.PrivateKeyHex = redactSecret(cfg.Identity.PrivateKeyHex, "NOSTRMCP_PRIVATE_KEY_HEX")
	c.Payment.X402.BearerToken = redactSecret(cfg.Payment.X402.BearerToken, "NOSTRMCP_X402_BEARER_TOKEN")
	return &c
}

func redactSecret(value, envName string) string {
	if value == "" {
		return ""
	}
	return "<from env " + envName + ">"
}

// WriteSnapshot writes the redacted config snapshot to
// stateDir/config.yaml.snapshot.
func WriteSnapshot(stateDir string, cfg *Config) error {
	snap := SnapshotConfig(cfg)
	if snap == nil {
		return fmt.Errorf("config is nil")
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	p := filepath.Join(stateDir, "config.yaml.snapshot")
	return os.WriteFile(p, data, 0600)
}
