// Package transport adapts the session-oriented JSON-RPC app protocol onto
// Nostr events: one signed event per send, one filtered subscription per
// receive. Client and server share the wrap-kind choice and encryption-mode
// type defined here.
package transport

// EncryptionMode controls whether app-message events are gift-wrapped.
type EncryptionMode int

const (
	// EncryptionDisabled never wraps; app-message events are published in
	// the clear.
	EncryptionDisabled EncryptionMode = iota
	// EncryptionOptional wraps only once the peer has been observed to
	// wrap, per the negotiation rule in client.go/server.go.
	EncryptionOptional
	// EncryptionRequired always wraps and reports a failure to decrypt as an
	// error-level "decrypt_failed" event (other modes report it at warning
	// level); the undecryptable event is dropped in every mode.
	EncryptionRequired
)
