package signing

import (
	"context"
	"fmt"

	"github.com/nostrmcp/bridge/internal/nostrevent"
)

// RemoteSigner adapts an out-of-process signer (a NIP-46 "bunker", an HSM,
// or any other remote key custodian) to the Signer interface. The core
// never needs to know the transport the remote signer uses to reach its
// key material; callers supply the four operations as functions, which lets
// a bunker client built on internal/relay (itself a Nostr event exchange)
// satisfy this interface without this package depending on internal/relay.
type RemoteSigner struct {
	PublicKeyFunc func(ctx context.Context) (string, error)
	SignEventFunc func(ctx context.Context, template nostrevent.Template) (nostrevent.Event, error)
	EncryptFunc   func(ctx context.Context, peerPubKey, plaintext string) (string, error)
	DecryptFunc   func(ctx context.Context, peerPubKey, ciphertext string) (string, error)
}

func (r *RemoteSigner) GetPublicKey(ctx context.Context) (string, error) {
	if r.PublicKeyFunc == nil {
		return "", fmt.Errorf("signing: remote signer has no GetPublicKey implementation")
	}
	return r.PublicKeyFunc(ctx)
}

func (r *RemoteSigner) SignEvent(ctx context.Context, template nostrevent.Template) (nostrevent.Event, error) {
	if r.SignEventFunc == nil {
		return nostrevent.Event{}, fmt.Errorf("signing: remote signer has no SignEvent implementation")
	}
	return r.SignEventFunc(ctx, template)
}

// Encrypt returns ErrEncryptionUnsupported when the remote signer was
// constructed without an encryption capability.
func (r *RemoteSigner) Encrypt(ctx context.Context, peerPubKey, plaintext string) (string, error) {
	if r.EncryptFunc == nil {
		return "", ErrEncryptionUnsupported
	}
	return r.EncryptFunc(ctx, peerPubKey, plaintext)
}

func (r *RemoteSigner) Decrypt(ctx context.Context, peerPubKey, ciphertext string) (string, error) {
	if r.DecryptFunc == nil {
		return "", ErrEncryptionUnsupported
	}
	return r.DecryptFunc(ctx, peerPubKey, ciphertext)
}
