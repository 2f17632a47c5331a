package config

// DefaultYAML is a starter config.yaml; no CLI command writes it. Load does
// not expand placeholders like ${NOSTRMCP_PRIVATE_KEY_HEX}: the environment
// overlay replaces those fields only when the matching variable is set.
const DefaultYAML = `version: 1

identity:
  private_key_hex: ${NOSTRMCP_PRIVATE_KEY_HEX}
  bunker_url: ""

relays:
  urls:
    - "wss://relay.damus.io"
    - "wss://nos.lol"

server:
  max_sessions: 4096
  encryption_mode: optional
  public: false
  stateless: false

client:
  server_pubkey: ""
  encryption_mode: optional
  stateless: false

payment:
  enabled: false
  payment_ttl_seconds: 300
  max_pending_payments: 1000
  priced_capabilities: []
  x402:
    facilitator_url: ""
    bearer_token: ${NOSTRMCP_X402_BEARER_TOKEN}
    network: "eip155:8453"
    asset: ""
    pay_to: ""
    scheme: "exact"
`
