package giftwrap

import (
	"context"
	"testing"

	"github.com/nostrmcp/bridge/internal/bridgeerr"
	"github.com/nostrmcp/bridge/internal/nostrevent"
	"github.com/nostrmcp/bridge/internal/signing"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	recipient, err := signing.GenerateLocalSigner()
	if err != nil {
		t.Fatalf("GenerateLocalSigner: %v", err)
	}
	ctx := context.Background()
	recipientPub, err := recipient.GetPublicKey(ctx)
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}

	wrapped, err := Wrap(ctx, nostrevent.KindGiftWrap, recipientPub, `{"hello":"world"}`)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if wrapped.Kind != nostrevent.KindGiftWrap {
		t.Fatalf("wrapped.Kind = %d; want %d", wrapped.Kind, nostrevent.KindGiftWrap)
	}
	if tag, ok := wrapped.Tags.First(nostrevent.TagRecipient); !ok || tag != recipientPub {
		t.Fatalf("wrapped recipient tag = %q, %v; want %q, true", tag, ok, recipientPub)
	}

	plaintext, err := Unwrap(ctx, recipient, wrapped)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if plaintext != `{"hello":"world"}` {
		t.Fatalf("plaintext = %q", plaintext)
	}
}

func TestUnwrapRejectsNonWrapKind(t *testing.T) {
	recipient, _ := signing.GenerateLocalSigner()
	ev := nostrevent.Event{Kind: nostrevent.KindAppMessage}
	if _, err := Unwrap(context.Background(), recipient, ev); err == nil {
		t.Fatal("expected error for non-wrap kind")
	}
}

func TestUnwrapSurfacesEncryptionUnsupported(t *testing.T) {
	recipientPriv, _ := signing.GenerateLocalSigner()
	ctx := context.Background()
	recipientPub, _ := recipientPriv.GetPublicKey(ctx)

	wrapped, err := Wrap(ctx, nostrevent.KindGiftWrapEph, recipientPub, "plaintext")
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	limited := &signing.RemoteSigner{}
	_, err = Unwrap(ctx, limited, wrapped)
	if !bridgeerr.Is(err, bridgeerr.CodeEncryptionRequired) {
		t.Fatalf("err = %v; want CodeEncryptionRequired", err)
	}
}
