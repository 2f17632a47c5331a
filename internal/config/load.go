package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options configures config loading. ConfigPath is relative to RootDir if not absolute.
type Options struct {
	ConfigPath     string     // Path to config.yaml
	RootDir        string     // Working directory config.yaml and .env live under
	StateDir       string     // State directory (default: <root>/.nostrmcp)
	NonInteractive bool       // If true, fail fast with actionable errors
	SkipValidate   bool       // If true, skip validation (e.g. for config print)
	Overrides      *Overrides // CLI overrides; nil means no overrides
}

// Overrides holds CLI flag values that take precedence over env/file/defaults.
// Only non-nil fields are applied. Callers should pass nil for flags not explicitly set.
type Overrides struct {
	RelayURLs      []string
	ServerPublic   *bool
	ClientServerPK *string
	PrivateKeyHex  *string
}

// Load builds config with precedence: defaults → config.yaml → .env → env vars → Overrides.
// Returns an error suitable for exit code 2 when invalid.
func Load(opts Options) (*Config, error) {
	cfg := Default()
	cfg.RootDir = opts.RootDir
	cfg.StateDir = opts.StateDir

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = "config.yaml"
	}
	if !filepath.IsAbs(configPath) && opts.RootDir != "" {
		configPath = filepath.Join(opts.RootDir, configPath)
	}
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("CONFIG_INVALID: malformed YAML in %s: %w", configPath, err)
		}
	}

	envDir := opts.RootDir
	if envDir == "" {
		envDir = "."
	}
	if err := loadDotEnvFiles(filepath.Join(envDir, ".env"), filepath.Join(envDir, ".env.local")); err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: loading .env: %w", err)
	}

	applyEnvOverlay(&cfg)

	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg, opts.NonInteractive); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("NOSTRMCP_PRIVATE_KEY_HEX"); v != "" {
		cfg.Identity.PrivateKeyHex = v
	}
	if v := os.Getenv("NOSTRMCP_BUNKER_URL"); v != "" {
		cfg.Identity.BunkerURL = v
	}
	if v := os.Getenv("NOSTRMCP_RELAYS"); v != "" {
		cfg.Relays.URLs = splitCSV(v)
	}
	if v := os.Getenv("NOSTRMCP_SERVER_PUBKEY"); v != "" {
		cfg.Client.ServerPubKey = v
	}
	if v := os.Getenv("NOSTRMCP_X402_FACILITATOR_URL"); v != "" {
		cfg.Payment.X402.FacilitatorURL = v
	}
	if v := os.Getenv("NOSTRMCP_X402_BEARER_TOKEN"); v != "" {
		cfg.Payment.X402.BearerToken = v
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if len(o.RelayURLs) > 0 {
		cfg.Relays.URLs = o.RelayURLs
	}
	if o.ServerPublic != nil {
		cfg.Server.Public = *o.ServerPublic
	}
	if o.ClientServerPK != nil {
		cfg.Client.ServerPubKey = *o.ClientServerPK
	}
	if o.PrivateKeyHex != nil {
		cfg.Identity.PrivateKeyHex = *o.PrivateKeyHex
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
