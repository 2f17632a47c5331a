package config

import (
	"fmt"
	"strings"
)

// Validate checks required fields and enum constraints. For non-interactive
// mode, returns an error with an actionable message (e.g. "Set env:
// NOSTRMCP_PRIVATE_KEY_HEX=...") so the caller can exit non-zero.
func Validate(cfg *Config, nonInteractive bool) error {
	if cfg == nil {
		return fmt.Errorf("CONFIG_INVALID: nil config")
	}
	if cfg.Identity.PrivateKeyHex == "" && cfg.Identity.BunkerURL == "" {
		return fmt.Errorf("CONFIG_INVALID: Missing identity\nSet env: NOSTRMCP_PRIVATE_KEY_HEX=...\nOr run: nostrmcp keys generate")
	}
	if len(cfg.Relays.URLs) == 0 {
		return fmt.Errorf("CONFIG_INVALID: relays.urls is empty; at least one relay URL is required")
	}
	for _, u := range cfg.Relays.URLs {
		if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			return fmt.Errorf("CONFIG_INVALID: relays.urls contains %q; must be a ws:// or wss:// URL", u)
		}
	}
	if err := validateEnums(cfg); err != nil {
		return err
	}
	if cfg.Payment.Enabled {
		if err := validatePayment(cfg); err != nil {
			return err
		}
	}
	return nil
}

// validateEnums checks constrained string fields against allowed values.
func validateEnums(cfg *Config) error {
	if !stringIn(cfg.Server.EncryptionMode, EncryptionModes) {
		return fmt.Errorf("CONFIG_INVALID: server.encryption_mode=%q; allowed: %s", cfg.Server.EncryptionMode, strings.Join(EncryptionModes, ", "))
	}
	if !stringIn(cfg.Client.EncryptionMode, EncryptionModes) {
		return fmt.Errorf("CONFIG_INVALID: client.encryption_mode=%q; allowed: %s", cfg.Client.EncryptionMode, strings.Join(EncryptionModes, ", "))
	}
	for _, pc := range cfg.Payment.PricedCapabilities {
		if !stringIn(pc.Method, PricedMethods) {
			return fmt.Errorf("CONFIG_INVALID: payment.priced_capabilities method=%q; allowed: %s", pc.Method, strings.Join(PricedMethods, ", "))
		}
	}
	return nil
}

func validatePayment(cfg *Config) error {
	if len(cfg.Payment.PricedCapabilities) == 0 {
		return fmt.Errorf("CONFIG_INVALID: payment.enabled=true but payment.priced_capabilities is empty")
	}
	if cfg.Payment.X402.FacilitatorURL == "" {
		return fmt.Errorf("CONFIG_INVALID: Missing payment.x402.facilitator_url\nSet env: NOSTRMCP_X402_FACILITATOR_URL=...")
	}
	if cfg.Payment.X402.PayTo == "" {
		return fmt.Errorf("CONFIG_INVALID: payment.x402.pay_to is required when payment.enabled=true")
	}
	return nil
}
