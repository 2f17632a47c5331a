// Package signing defines the Signer capability the core depends on and
// ships one concrete in-process implementation. The core itself never
// touches a private key directly; every signature and every
// encrypt/decrypt call crosses this interface.
package signing

import (
	"context"
	"errors"

	"github.com/nostrmcp/bridge/internal/nostrevent"
)

// ErrEncryptionUnsupported is returned by a Signer that cannot perform
// authenticated encryption (e.g. a capability-limited remote signer).
var ErrEncryptionUnsupported = errors.New("signing: signer does not support encryption")

// Signer is the capability the core depends on for identity, signing, and
// NIP-44-style authenticated encryption. Two concrete shapes are expected:
// an in-process private-key signer (LocalSigner, below) and an external
// remote signer (RemoteSigner) that proxies these calls over some other
// channel.
type Signer interface {
	// GetPublicKey returns this signer's hex-encoded public key.
	GetPublicKey(ctx context.Context) (string, error)

	// SignEvent hashes and signs template, returning a complete Event.
	SignEvent(ctx context.Context, template nostrevent.Template) (nostrevent.Event, error)

	// Encrypt produces ciphertext addressed to peerPubKey under this
	// signer's conversation key with peerPubKey.
	Encrypt(ctx context.Context, peerPubKey, plaintext string) (string, error)

	// Decrypt reverses Encrypt. Returns ErrEncryptionUnsupported if this
	// signer cannot decrypt (the gift-wrap codec maps that to a typed
	// bridgeerr.CodeEncryptionRequired failure).
	Decrypt(ctx context.Context, peerPubKey, ciphertext string) (string, error)
}
