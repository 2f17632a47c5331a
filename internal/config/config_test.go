package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_UsesDotEnvWhenEnvIsMissing(t *testing.T) {
	clearIdentityEnv(t)
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, ".env"), "NOSTRMCP_PRIVATE_KEY_HEX=from_dotenv\nNOSTRMCP_SERVER_PUBKEY=serverpub\n")

	cfg, err := Load(Options{RootDir: tmp, SkipValidate: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Identity.PrivateKeyHex != "from_dotenv" {
		t.Fatalf("unexpected private key: %q", cfg.Identity.PrivateKeyHex)
	}
	if cfg.Client.ServerPubKey != "serverpub" {
		t.Fatalf("unexpected server pubkey: %q", cfg.Client.ServerPubKey)
	}
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	clearIdentityEnv(t)
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, ".env"), "NOSTRMCP_PRIVATE_KEY_HEX=from_dotenv\n")
	t.Setenv("NOSTRMCP_PRIVATE_KEY_HEX", "from_env")

	cfg, err := Load(Options{RootDir: tmp, SkipValidate: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Identity.PrivateKeyHex != "from_env" {
		t.Fatalf("unexpected private key: %q", cfg.Identity.PrivateKeyHex)
	}
}

func TestLoad_DotEnvLocalOverridesDotEnv(t *testing.T) {
	clearIdentityEnv(t)
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, ".env"), "NOSTRMCP_PRIVATE_KEY_HEX=from_env_file\n")
	writeFile(t, filepath.Join(tmp, ".env.local"), "NOSTRMCP_PRIVATE_KEY_HEX=from_env_local\n")

	cfg, err := Load(Options{RootDir: tmp, SkipValidate: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Identity.PrivateKeyHex != "from_env_local" {
		t.Fatalf("unexpected private key: %q", cfg.Identity.PrivateKeyHex)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func clearIdentityEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NOSTRMCP_PRIVATE_KEY_HEX", "")
	t.Setenv("NOSTRMCP_BUNKER_URL", "")
	t.Setenv("NOSTRMCP_SERVER_PUBKEY", "")
}
