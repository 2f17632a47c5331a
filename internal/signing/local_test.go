package signing

import (
	"context"
	"testing"

	"github.com/nostrmcp/bridge/internal/nostrevent"
)

func TestLocalSignerRoundTripEncryption(t *testing.T) {
	alice, err := GenerateLocalSigner()
	if err != nil {
		t.Fatalf("GenerateLocalSigner(alice): %v", err)
	}
	bob, err := GenerateLocalSigner()
	if err != nil {
		t.Fatalf("GenerateLocalSigner(bob): %v", err)
	}

	ctx := context.Background()
	bobPub, err := bob.GetPublicKey(ctx)
	if err != nil {
		t.Fatalf("bob.GetPublicKey: %v", err)
	}
	alicePub, err := alice.GetPublicKey(ctx)
	if err != nil {
		t.Fatalf("alice.GetPublicKey: %v", err)
	}

	plaintext := `{"jsonrpc":"2.0","id":"1","method":"tools/call"}`
	ciphertext, err := alice.Encrypt(ctx, bobPub, plaintext)
	if err != nil {
		t.Fatalf("alice.Encrypt: %v", err)
	}

	decrypted, err := bob.Decrypt(ctx, alicePub, ciphertext)
	if err != nil {
		t.Fatalf("bob.Decrypt: %v", err)
	}
	if decrypted != plaintext {
		t.Fatalf("decrypted = %q; want %q", decrypted, plaintext)
	}
}

func TestLocalSignerSignEventProducesVerifiableID(t *testing.T) {
	signer, err := GenerateLocalSigner()
	if err != nil {
		t.Fatalf("GenerateLocalSigner: %v", err)
	}
	ctx := context.Background()
	pub, err := signer.GetPublicKey(ctx)
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}

	tmpl := nostrevent.Template{
		PubKey:    pub,
		CreatedAt: 1700000000,
		Kind:      nostrevent.KindAppMessage,
		Tags:      nostrevent.Tags{{"p", "deadbeef"}},
		Content:   "hello",
	}

	event, err := signer.SignEvent(ctx, tmpl)
	if err != nil {
		t.Fatalf("SignEvent: %v", err)
	}

	wantID, err := nostrevent.ComputeID(tmpl)
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	if event.ID != wantID {
		t.Fatalf("event.ID = %q; want %q", event.ID, wantID)
	}
	if event.Sig == "" {
		t.Fatal("event.Sig is empty")
	}
}

func TestRemoteSignerWithoutEncryptionCapability(t *testing.T) {
	rs := &RemoteSigner{}
	_, err := rs.Encrypt(context.Background(), "peer", "plaintext")
	if err != ErrEncryptionUnsupported {
		t.Fatalf("err = %v; want ErrEncryptionUnsupported", err)
	}
}
