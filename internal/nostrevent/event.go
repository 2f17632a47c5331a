// Package nostrevent defines the wire-level event the rest of this module
// treats mostly as opaque: kinds, tag helpers, and the template used before
// signing. Concrete signing and hashing live in internal/signing; this
// package only knows the shape.
package nostrevent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Event kinds recognized by the core.
const (
	KindAppMessage   = 25910 // ephemeral request/response/notification carrier
	KindGiftWrap     = 1059  // persistent gift wrap
	KindGiftWrapEph  = 21059 // ephemeral gift wrap

	KindServerInfo         = 11316
	KindToolsList          = 11317
	KindResourcesList      = 11318
	KindResourceTemplates  = 11319
	KindPromptsList        = 11320
)

// Tag names used by the core.
const (
	TagRecipient  = "p"
	TagCorrelated = "e"
	TagCap        = "cap"
	TagPMI        = "pmi"
)

// IsGiftWrapKind reports whether kind is one of the two recognized wrap
// kinds (§4.2).
func IsGiftWrapKind(kind int) bool {
	return kind == KindGiftWrap || kind == KindGiftWrapEph
}

// Tag is an ordered list of strings, e.g. ["p", "<pubkey>"].
type Tag []string

// Tags is an ordered list of Tag, preserving publication order.
type Tags []Tag

// First returns the first tag whose name (element 0) matches, and its
// second element, if present.
func (t Tags) First(name string) (string, bool) {
	for _, tag := range t {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// All returns every tag's second element for tags whose name matches.
func (t Tags) All(name string) []string {
	var out []string
	for _, tag := range t {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

// Template is an unsigned event, ready to be hashed and signed.
type Template struct {
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
}

// Event is a complete, signed event as received from or published to a
// relay. The core treats it as opaque beyond the fields below.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// serializationArray is the NIP-01 event-id preimage: a fixed-shape JSON
// array over which the sha256 content hash is computed.
type serializationArray [6]interface{}

// ComputeID returns the hex-encoded sha256 content hash for the template,
// per NIP-01's canonical serialization: [0, pubkey, created_at, kind, tags, content].
func ComputeID(t Template) (string, error) {
	arr := serializationArray{0, t.PubKey, t.CreatedAt, t.Kind, t.Tags, t.Content}
	raw, err := json.Marshal(arr)
	if err != nil {
		return "", fmt.Errorf("nostrevent: serialize for id: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Finalize combines a template, its precomputed id, and a signature into a
// complete Event.
func Finalize(t Template, id, sig string) Event {
	return Event{
		ID:        id,
		PubKey:    t.PubKey,
		CreatedAt: t.CreatedAt,
		Kind:      t.Kind,
		Tags:      t.Tags,
		Content:   t.Content,
		Sig:       sig,
	}
}
