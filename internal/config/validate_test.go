package config

import (
	"strings"
	"testing"
)

// TestValidate_MissingIdentityYieldsActionableOutput verifies missing
// identity returns an error with CONFIG_INVALID and remediation.
func TestValidate_MissingIdentityYieldsActionableOutput(t *testing.T) {
	cfg := Default()
	cfg.Relays.URLs = []string{"wss://relay.example"}

	err := Validate(&cfg, true)
	if err == nil {
		t.Fatal("expected error when identity missing")
	}
	msg := err.Error()
	if !strings.Contains(msg, "CONFIG_INVALID") {
		t.Errorf("error should contain CONFIG_INVALID, got: %s", msg)
	}
	if !strings.Contains(msg, "NOSTRMCP_PRIVATE_KEY_HEX") {
		t.Errorf("error should mention NOSTRMCP_PRIVATE_KEY_HEX, got: %s", msg)
	}
	if !strings.Contains(msg, "Set env") {
		t.Errorf("error should be actionable (Set env), got: %s", msg)
	}
}

func TestValidate_RejectsEmptyRelayList(t *testing.T) {
	cfg := Default()
	cfg.Identity.PrivateKeyHex = "deadbeef"
	cfg.Relays.URLs = nil

	err := Validate(&cfg, true)
	if err == nil || !strings.Contains(err.Error(), "relays.urls") {
		t.Fatalf("expected relays.urls error, got %v", err)
	}
}

func TestValidate_RejectsNonWebsocketRelayURL(t *testing.T) {
	cfg := Default()
	cfg.Identity.PrivateKeyHex = "deadbeef"
	cfg.Relays.URLs = []string{"https://not-a-relay.example"}

	err := Validate(&cfg, true)
	if err == nil || !strings.Contains(err.Error(), "ws://") {
		t.Fatalf("expected ws scheme error, got %v", err)
	}
}

func TestValidate_RejectsUnknownEncryptionMode(t *testing.T) {
	cfg := Default()
	cfg.Identity.PrivateKeyHex = "deadbeef"
	cfg.Server.EncryptionMode = "maybe"

	err := Validate(&cfg, true)
	if err == nil || !strings.Contains(err.Error(), "encryption_mode") {
		t.Fatalf("expected encryption_mode error, got %v", err)
	}
}

func TestValidate_PaymentEnabledRequiresCapabilitiesAndFacilitator(t *testing.T) {
	cfg := Default()
	cfg.Identity.PrivateKeyHex = "deadbeef"
	cfg.Payment.Enabled = true

	err := Validate(&cfg, true)
	if err == nil || !strings.Contains(err.Error(), "priced_capabilities") {
		t.Fatalf("expected priced_capabilities error, got %v", err)
	}

	cfg.Payment.PricedCapabilities = []PricedCapability{{Method: "tools/call", Name: "add", Amount: "1"}}
	err = Validate(&cfg, true)
	if err == nil || !strings.Contains(err.Error(), "facilitator_url") {
		t.Fatalf("expected facilitator_url error, got %v", err)
	}
}
