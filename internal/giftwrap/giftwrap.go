// Package giftwrap encrypts an app-message event under a freshly generated
// one-shot key pair, so that only the intended recipient's signer can
// recover the content.
package giftwrap

import (
	"context"
	"fmt"
	"time"

	"github.com/nostrmcp/bridge/internal/bridgeerr"
	"github.com/nostrmcp/bridge/internal/nostrevent"
	"github.com/nostrmcp/bridge/internal/signing"
)

// Wrap encrypts plaintext (the serialized app-message) for recipientPubKey
// under a fresh ephemeral key, and returns a signed event of the given wrap
// kind (nostrevent.KindGiftWrap or KindGiftWrapEph — both share this shape).
func Wrap(ctx context.Context, wrapKind int, recipientPubKey, plaintext string) (nostrevent.Event, error) {
	if !nostrevent.IsGiftWrapKind(wrapKind) {
		return nostrevent.Event{}, fmt.Errorf("giftwrap: %d is not a recognized wrap kind", wrapKind)
	}

	ephemeral, err := signing.GenerateLocalSigner()
	if err != nil {
		return nostrevent.Event{}, fmt.Errorf("giftwrap: generate ephemeral key: %w", err)
	}
	ephemeralPub, err := ephemeral.GetPublicKey(ctx)
	if err != nil {
		return nostrevent.Event{}, fmt.Errorf("giftwrap: ephemeral pubkey: %w", err)
	}

	ciphertext, err := ephemeral.Encrypt(ctx, recipientPubKey, plaintext)
	if err != nil {
		return nostrevent.Event{}, fmt.Errorf("giftwrap: encrypt: %w", err)
	}

	tmpl := nostrevent.Template{
		PubKey:    ephemeralPub,
		CreatedAt: time.Now().Unix(),
		Kind:      wrapKind,
		Tags:      nostrevent.Tags{{nostrevent.TagRecipient, recipientPubKey}},
		Content:   ciphertext,
	}
	return ephemeral.SignEvent(ctx, tmpl)
}

// Unwrap decrypts an inbound gift-wrap event using signer, the recipient's
// own key custodian. It refuses events whose kind is not a recognized wrap
// kind, and surfaces bridgeerr.CodeEncryptionRequired when signer lacks the
// decryption capability — the codec never sees or handles long-term keys
// directly, only what signer.Decrypt returns.
func Unwrap(ctx context.Context, signer signing.Signer, wrap nostrevent.Event) (string, error) {
	if !nostrevent.IsGiftWrapKind(wrap.Kind) {
		return "", fmt.Errorf("giftwrap: event kind %d is not a recognized wrap kind", wrap.Kind)
	}

	plaintext, err := signer.Decrypt(ctx, wrap.PubKey, wrap.Content)
	if err != nil {
		if err == signing.ErrEncryptionUnsupported {
			return "", bridgeerr.Wrap(bridgeerr.CodeEncryptionRequired, "signer cannot decrypt gift-wrapped event", err)
		}
		return "", fmt.Errorf("giftwrap: decrypt: %w", err)
	}
	return plaintext, nil
}
