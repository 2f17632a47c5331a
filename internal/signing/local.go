package signing

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/nostrmcp/bridge/internal/nostrevent"
)

// LocalSigner holds a secp256k1 private key in process and implements
// Signer directly: BIP-340 Schnorr signatures over the event id (as Nostr
// events are signed) and NIP-44-style authenticated encryption keyed by an
// ECDH-derived conversation key per peer.
type LocalSigner struct {
	priv   *secp256k1.PrivateKey
	pubHex string
}

// NewLocalSigner wraps an existing 32-byte private key.
func NewLocalSigner(privKeyBytes []byte) (*LocalSigner, error) {
	if len(privKeyBytes) != 32 {
		return nil, fmt.Errorf("signing: private key must be 32 bytes, got %d", len(privKeyBytes))
	}
	priv := secp256k1.PrivKeyFromBytes(privKeyBytes)
	pub := priv.PubKey()
	return &LocalSigner{
		priv:   priv,
		pubHex: hex.EncodeToString(schnorrXOnly(pub)),
	}, nil
}

// GenerateLocalSigner creates a fresh random keypair.
func GenerateLocalSigner() (*LocalSigner, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("signing: generate key: %w", err)
	}
	return NewLocalSigner(priv.Serialize())
}

// schnorrXOnly returns the 32-byte x-only public key Nostr uses as pubkey,
// per BIP-340.
func schnorrXOnly(pub *secp256k1.PublicKey) []byte {
	return pub.SerializeCompressed()[1:]
}

func (s *LocalSigner) GetPublicKey(ctx context.Context) (string, error) {
	return s.pubHex, nil
}

// PrivateKeyHex returns the raw 32-byte private key as hex, for "keys
// generate" to print and for callers to save into identity.private_key_hex.
func (s *LocalSigner) PrivateKeyHex() string {
	return hex.EncodeToString(s.priv.Serialize())
}

func (s *LocalSigner) SignEvent(ctx context.Context, template nostrevent.Template) (nostrevent.Event, error) {
	id, err := nostrevent.ComputeID(template)
	if err != nil {
		return nostrevent.Event{}, err
	}
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return nostrevent.Event{}, fmt.Errorf("signing: decode event id: %w", err)
	}
	sig, err := schnorr.Sign(s.priv, idBytes)
	if err != nil {
		return nostrevent.Event{}, fmt.Errorf("signing: sign event: %w", err)
	}
	return nostrevent.Finalize(template, id, hex.EncodeToString(sig.Serialize())), nil
}

func (s *LocalSigner) Encrypt(ctx context.Context, peerPubKey, plaintext string) (string, error) {
	shared, err := s.sharedSecretX(peerPubKey)
	if err != nil {
		return "", err
	}
	return nip44Encrypt(shared, plaintext)
}

func (s *LocalSigner) Decrypt(ctx context.Context, peerPubKey, ciphertext string) (string, error) {
	shared, err := s.sharedSecretX(peerPubKey)
	if err != nil {
		return "", err
	}
	return nip44Decrypt(shared, ciphertext)
}

// sharedSecretX computes the ECDH shared point with the peer's x-only
// pubkey (lifted to an even-y point, as Nostr/BIP-340 pubkeys are x-only)
// and returns its affine x-coordinate, the NIP-44 conversation-key input.
func (s *LocalSigner) sharedSecretX(peerPubKeyHex string) ([32]byte, error) {
	peerBytes, err := hex.DecodeString(peerPubKeyHex)
	if err != nil || len(peerBytes) != 32 {
		return [32]byte{}, fmt.Errorf("signing: invalid peer pubkey %q", peerPubKeyHex)
	}
	// x-only keys are ambiguous in y; NIP-44 convention lifts to the even-y
	// point by prefixing 0x02, matching BIP-340/schnorr.ParsePubKey.
	compressed := append([]byte{0x02}, peerBytes...)
	peerPub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return [32]byte{}, fmt.Errorf("signing: parse peer pubkey: %w", err)
	}

	var peerPoint, result secp256k1.JacobianPoint
	peerPub.AsJacobian(&peerPoint)

	var scalar secp256k1.ModNScalar
	scalar.SetByteSlice(s.priv.Serialize())

	secp256k1.ScalarMultNonConst(&scalar, &peerPoint, &result)
	result.ToAffine()

	var out [32]byte
	result.X.PutBytesUnchecked(out[:])
	return out, nil
}
