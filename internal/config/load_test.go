package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestPrecedence_OverridesBeatEnv verifies overrides > env > file > defaults.
func TestPrecedence_OverridesBeatEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := "version: 1\nidentity:\n  private_key_hex: \"from-file\"\nrelays:\n  urls: [\"wss://from-file.example\"]\n"
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("NOSTRMCP_PRIVATE_KEY_HEX", "from-env")

	override := "deadbeef"
	overrides := &Overrides{
		PrivateKeyHex: &override,
		RelayURLs:     []string{"wss://override.example"},
	}
	cfg, err := Load(Options{
		ConfigPath:   configPath,
		RootDir:      dir,
		SkipValidate: false,
		Overrides:    overrides,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Identity.PrivateKeyHex != "deadbeef" {
		t.Errorf("expected identity.private_key_hex from overrides, got %q", cfg.Identity.PrivateKeyHex)
	}
	if len(cfg.Relays.URLs) != 1 || cfg.Relays.URLs[0] != "wss://override.example" {
		t.Errorf("expected relays.urls from overrides, got %v", cfg.Relays.URLs)
	}
}

// TestPrecedence_EnvOverridesFile verifies env overrides file when no overrides are given.
func TestPrecedence_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := "version: 1\nidentity:\n  private_key_hex: \"from-file\"\n"
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NOSTRMCP_PRIVATE_KEY_HEX", "from-env")

	cfg, err := Load(Options{ConfigPath: configPath, RootDir: dir, SkipValidate: true})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Identity.PrivateKeyHex != "from-env" {
		t.Errorf("expected identity.private_key_hex from env 'from-env', got %q", cfg.Identity.PrivateKeyHex)
	}
}

// TestSnapshot_NeverStoresPlaintextSecrets verifies snapshot redacts secrets.
func TestSnapshot_NeverStoresPlaintextSecrets(t *testing.T) {
	cfg := Default()
	cfg.Identity.PrivateKeyHex = "sk-secret-private-key"
	cfg.Payment.X402.BearerToken = "sk-secret-bearer-token"

	snap := SnapshotConfig(&cfg)
	if snap.Identity.PrivateKeyHex != "<from env NOSTRMCP_PRIVATE_KEY_HEX>" {
		t.Errorf("Identity.PrivateKeyHex should be redacted, got %q", snap.Identity.PrivateKeyHex)
	}
	if snap.Payment.X402.BearerToken != "<from env NOSTRMCP_X402_BEARER_TOKEN>" {
		t.Errorf("Payment.X402.BearerToken should be redacted, got %q", snap.Payment.X402.BearerToken)
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Errorf("snapshot must not contain plaintext secrets: %s", string(data))
	}
}
