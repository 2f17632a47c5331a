package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

// NIP-44 v2 authenticated encryption: HKDF-derived ChaCha20 stream cipher
// plus an HMAC-SHA256 tag over nonce||ciphertext, with length-padded
// plaintext so ciphertext length reveals only a bucket, not an exact size.
// This is the algorithm the gift-wrap codec (internal/giftwrap) relies on
// through the Signer interface; it never runs against long-term keys
// directly outside this package.

const (
	nip44Version   = 2
	nip44Salt      = "nip44-v2"
	nip44NonceSize = 32
	nip44ChaKey    = 32
	nip44ChaNonce  = 12
	nip44HMACKey   = 32
	nip44ExpandLen = nip44ChaKey + nip44ChaNonce + nip44HMACKey
	nip44MinLen    = 1
	nip44MaxLen    = 0xffff
)

// deriveConversationKey runs HKDF-extract over the ECDH shared x-coordinate,
// per NIP-44 §"Conversation key".
func deriveConversationKey(sharedX [32]byte) []byte {
	extractor := hkdf.Extract(sha256.New, sharedX[:], []byte(nip44Salt))
	return extractor
}

func expandMessageKeys(conversationKey, nonce []byte) (chaKey, chaNonce, hmacKey []byte, err error) {
	reader := hkdf.Expand(sha256.New, conversationKey, nonce)
	buf := make([]byte, nip44ExpandLen)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, nil, nil, fmt.Errorf("signing: hkdf expand: %w", err)
	}
	return buf[:nip44ChaKey], buf[nip44ChaKey : nip44ChaKey+nip44ChaNonce], buf[nip44ChaKey+nip44ChaNonce:], nil
}

// calcPaddedLen returns the padded bucket size for an unpadded length,
// following NIP-44's power-of-two bucketing so ciphertexts of similar size
// are indistinguishable.
func calcPaddedLen(unpaddedLen int) int {
	if unpaddedLen <= 32 {
		return 32
	}
	nextPower := 1 << (bits.Len(uint(unpaddedLen-1)))
	chunk := 32
	if nextPower > 256 {
		chunk = nextPower / 8
	}
	return chunk * ((unpaddedLen-1)/chunk + 1)
}

func pad(plaintext []byte) ([]byte, error) {
	n := len(plaintext)
	if n < nip44MinLen || n > nip44MaxLen {
		return nil, fmt.Errorf("signing: plaintext length %d out of bounds", n)
	}
	padded := make([]byte, 2+calcPaddedLen(n))
	binary.BigEndian.PutUint16(padded[:2], uint16(n))
	copy(padded[2:], plaintext)
	return padded, nil
}

func unpad(padded []byte) ([]byte, error) {
	if len(padded) < 2 {
		return nil, fmt.Errorf("signing: padded plaintext too short")
	}
	n := int(binary.BigEndian.Uint16(padded[:2]))
	if n < nip44MinLen || n > nip44MaxLen || 2+n > len(padded) {
		return nil, fmt.Errorf("signing: invalid padded length prefix")
	}
	unpaddedLen := calcPaddedLen(n)
	if len(padded) != 2+unpaddedLen {
		return nil, fmt.Errorf("signing: padded length does not match bucket size")
	}
	return padded[2 : 2+n], nil
}

// nip44Encrypt encrypts plaintext under the conversation key derived from
// sharedX, returning the base64 NIP-44 payload.
func nip44Encrypt(sharedX [32]byte, plaintext string) (string, error) {
	conversationKey := deriveConversationKey(sharedX)

	nonce := make([]byte, nip44NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("signing: generate nonce: %w", err)
	}

	chaKey, chaNonce, hmacKey, err := expandMessageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}

	padded, err := pad([]byte(plaintext))
	if err != nil {
		return "", err
	}

	cipher, err := chacha20.NewUnauthenticatedCipher(chaKey, chaNonce)
	if err != nil {
		return "", fmt.Errorf("signing: init chacha20: %w", err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.XORKeyStream(ciphertext, padded)

	mac := computeMAC(hmacKey, nonce, ciphertext)

	payload := make([]byte, 0, 1+nip44NonceSize+len(ciphertext)+sha256.Size)
	payload = append(payload, nip44Version)
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)
	payload = append(payload, mac...)

	return base64.StdEncoding.EncodeToString(payload), nil
}

// nip44Decrypt reverses nip44Encrypt.
func nip44Decrypt(sharedX [32]byte, payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("signing: invalid base64 payload: %w", err)
	}
	if len(raw) < 1+nip44NonceSize+sha256.Size {
		return "", fmt.Errorf("signing: payload too short")
	}
	if raw[0] != nip44Version {
		return "", fmt.Errorf("signing: unsupported nip44 version %d", raw[0])
	}

	nonce := raw[1 : 1+nip44NonceSize]
	mac := raw[len(raw)-sha256.Size:]
	ciphertext := raw[1+nip44NonceSize : len(raw)-sha256.Size]

	conversationKey := deriveConversationKey(sharedX)
	chaKey, chaNonce, hmacKey, err := expandMessageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}

	expectedMAC := computeMAC(hmacKey, nonce, ciphertext)
	if !hmac.Equal(mac, expectedMAC) {
		return "", fmt.Errorf("signing: mac mismatch")
	}

	cipher, err := chacha20.NewUnauthenticatedCipher(chaKey, chaNonce)
	if err != nil {
		return "", fmt.Errorf("signing: init chacha20: %w", err)
	}
	padded := make([]byte, len(ciphertext))
	cipher.XORKeyStream(padded, ciphertext)

	plain, err := unpad(padded)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func computeMAC(key, nonce, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(nonce)
	h.Write(ciphertext)
	return h.Sum(nil)
}
