package cli

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nostrmcp/bridge/internal/bridgeevent"
	"github.com/nostrmcp/bridge/internal/config"
	"github.com/nostrmcp/bridge/internal/relay"
	"github.com/nostrmcp/bridge/internal/signing"
	"github.com/nostrmcp/bridge/internal/transport"
)

// loadConfig resolves the config file for the current global flags,
// applying the precedence defaults -> yaml -> dotenv -> env documented in
// internal/config.
func loadConfig() (*config.Config, error) {
	rootDir, err := filepath.Abs(globalFlags.Dir)
	if err != nil {
		return nil, err
	}
	stateDir := globalFlags.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(rootDir, ".nostrmcp")
	}
	return config.Load(config.Options{
		ConfigPath:     globalFlags.ConfigPath,
		RootDir:        rootDir,
		StateDir:       stateDir,
		NonInteractive: globalFlags.NonInteractive,
	})
}

// buildSigner resolves a signing.Signer from the identity section of cfg.
// Only a local private key is supported; a configured bunker_url is
// rejected, since no remote-signer implementation is wired (signing.RemoteSigner
// exists but nothing in this CLI constructs it).
func buildSigner(id config.Identity) (signing.Signer, error) {
	if id.PrivateKeyHex == "" {
		return nil, fmt.Errorf("identity.private_key_hex is required; run 'nostrmcp keys generate'")
	}
	raw, err := hex.DecodeString(id.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("identity.private_key_hex is not valid hex: %w", err)
	}
	return signing.NewLocalSigner(raw)
}

// buildRelayPool constructs the one shipped relay.Handler over the
// configured relay URLs.
func buildRelayPool(urls []string, events bridgeevent.Func) relay.Handler {
	return relay.NewPool(urls, events)
}

// encryptionMode maps the config string enum onto transport.EncryptionMode.
func encryptionMode(s string) transport.EncryptionMode {
	switch s {
	case "required":
		return transport.EncryptionRequired
	case "disabled":
		return transport.EncryptionDisabled
	default:
		return transport.EncryptionOptional
	}
}

// cliEvents returns the event func this CLI reports non-fatal occurrences
// through: silent in quiet mode, slog-backed otherwise.
func cliEvents() bridgeevent.Func {
	if globalFlags.Quiet {
		return nil
	}
	return bridgeevent.SlogFunc(slog.Default())
}

// secondsToDuration converts a config seconds field to a time.Duration,
// treating <= 0 as "unset" so callers fall back to the package default.
func secondsToDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
