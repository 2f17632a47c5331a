package config

// Allowed enum values for config validation.
var (
	EncryptionModes = []string{"disabled", "optional", "required"}
	PricedMethods   = []string{"tools/call", "prompts/get", "resources/read"}
)

func stringIn(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// Config holds the full resolved configuration.
// Precedence: defaults → YAML file → environment → explicit Overrides.
// RootDir and StateDir are set at load time from Options; not in YAML.
type Config struct {
	RootDir  string   `yaml:"-"` // Set from Options at load
	StateDir string   `yaml:"-"` // Set from Options at load
	Version  int      `yaml:"version"`
	Identity Identity `yaml:"identity"`
	Relays   Relays   `yaml:"relays"`
	Server   Server   `yaml:"server"`
	Client   Client   `yaml:"client"`
	Payment  Payment  `yaml:"payment"`
}

// Identity holds the signing key source. Exactly one of PrivateKeyHex or
// BunkerURL is expected; Validate rejects having neither.
type Identity struct {
	PrivateKeyHex string `yaml:"private_key_hex"`
	BunkerURL     string `yaml:"bunker_url"`
}

// Relays holds the pool of relay URLs the transport connects to.
type Relays struct {
	URLs []string `yaml:"urls"`
}

// Server holds settings for running the server half of the transport.
type Server struct {
	MaxSessions    int    `yaml:"max_sessions"`
	EncryptionMode string `yaml:"encryption_mode"` // disabled | optional | required
	Public         bool   `yaml:"public"`
	Stateless      bool   `yaml:"stateless"`
	WrapKind       int    `yaml:"wrap_kind"`
}

// Client holds settings for running the client half of the transport.
type Client struct {
	ServerPubKey   string `yaml:"server_pubkey"`
	EncryptionMode string `yaml:"encryption_mode"`
	Stateless      bool   `yaml:"stateless"`
	WrapKind       int    `yaml:"wrap_kind"`
}

// Payment holds the server-side payment middleware's gating and processor
// settings.
type Payment struct {
	Enabled            bool               `yaml:"enabled"`
	PaymentTTLSeconds  int                `yaml:"payment_ttl_seconds"`
	MaxPendingPayments int                `yaml:"max_pending_payments"`
	PricedCapabilities []PricedCapability `yaml:"priced_capabilities"`
	X402               X402               `yaml:"x402"`
}

// PricedCapability names one gated method+target pair and its price, mapped
// 1:1 onto internal/payment.PricedCapability at wiring time.
type PricedCapability struct {
	Method       string `yaml:"method"` // tools/call | prompts/get | resources/read
	Name         string `yaml:"name"`
	Amount       string `yaml:"amount"`
	MaxAmount    string `yaml:"max_amount"`
	CurrencyUnit string `yaml:"currency_unit"`
	Description  string `yaml:"description"`
}

// X402 holds devpay's facilitator settings.
type X402 struct {
	FacilitatorURL string `yaml:"facilitator_url"`
	BearerToken    string `yaml:"bearer_token"`
	Network        string `yaml:"network"`
	Asset          string `yaml:"asset"`
	PayTo          string `yaml:"pay_to"`
	Scheme         string `yaml:"scheme"`
}
