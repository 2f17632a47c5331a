// Package rpcmsg models the JSON-RPC 2.0 values exchanged between the app
// layer and the transports in this module: requests, responses, and
// notifications. Schema validation beyond the JSON-RPC envelope itself is
// the app layer's concern.
package rpcmsg

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// Meta carries the out-of-band "_meta" object JSON-RPC requests use to pass
// routing hints: the progress token and, on the wire toward the server, the
// sending client's own pubkey.
type Meta struct {
	ProgressToken string `json:"progressToken,omitempty"`
	ClientPubKey  string `json:"clientPubkey,omitempty"`
}

// Params is a loosely-typed params object with a well-known "_meta" field
// and a RawMessage for everything else, so capability matching (tool/prompt
// name, resource uri) and the progress token can be read without forcing
// callers to unmarshal into concrete per-method types.
type Params struct {
	Meta *Meta           `json:"_meta,omitempty"`
	Name string          `json:"name,omitempty"`
	URI  string          `json:"uri,omitempty"`
	Rest json.RawMessage `json:"-"`
}

func (p Params) MarshalJSON() ([]byte, error) {
	var m map[string]interface{}
	if len(p.Rest) > 0 {
		if err := json.Unmarshal(p.Rest, &m); err != nil {
			return nil, err
		}
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	if p.Meta != nil {
		m["_meta"] = p.Meta
	}
	if p.Name != "" {
		m["name"] = p.Name
	}
	if p.URI != "" {
		m["uri"] = p.URI
	}
	return json.Marshal(m)
}

func (p *Params) UnmarshalJSON(data []byte) error {
	var probe struct {
		Meta *Meta  `json:"_meta"`
		Name string `json:"name"`
		URI  string `json:"uri"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	p.Meta = probe.Meta
	p.Name = probe.Name
	p.URI = probe.URI
	p.Rest = append(json.RawMessage(nil), data...)
	return nil
}

// ID is a JSON-RPC id: string, number, or null. Kept as the decoded
// interface{} rather than a union type.
type ID = interface{}

// Message is a JSON-RPC 2.0 value that is exactly one of request, response,
// or notification, distinguished by which fields are present.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil rpcmsg.Error>"
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Kind classifies a decoded Message.
type Kind int

const (
	KindInvalid Kind = iota
	KindRequest
	KindResponse
	KindNotification
)

// Classify reports which of the three JSON-RPC shapes msg is. A request has
// both a non-null id and a method; a notification has a method and no id; a
// response has an id and no method.
func (m Message) Classify() Kind {
	hasID := len(m.ID) > 0 && string(m.ID) != "null"
	switch {
	case m.Method != "" && hasID:
		return KindRequest
	case m.Method != "" && !hasID:
		return KindNotification
	case hasID && m.Method == "":
		return KindResponse
	default:
		return KindInvalid
	}
}

// Decode parses raw JSON into a Message and validates the envelope.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("rpcmsg: invalid json: %w", err)
	}
	if m.JSONRPC != Version {
		return Message{}, fmt.Errorf("rpcmsg: jsonrpc must be %q", Version)
	}
	if m.Classify() == KindInvalid {
		return Message{}, fmt.Errorf("rpcmsg: message is neither request, response, nor notification")
	}
	return m, nil
}

// Encode serializes msg, filling in jsonrpc if unset.
func Encode(msg Message) ([]byte, error) {
	if msg.JSONRPC == "" {
		msg.JSONRPC = Version
	}
	return json.Marshal(msg)
}

// DecodeParams extracts the well-known Params fields from msg.Params.
func DecodeParams(msg Message) (Params, error) {
	var p Params
	if len(msg.Params) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return Params{}, fmt.Errorf("rpcmsg: invalid params: %w", err)
	}
	return p, nil
}

// WithID returns a copy of msg with its id field replaced.
func WithID(msg Message, id ID) Message {
	raw, err := json.Marshal(id)
	if err != nil {
		raw = []byte("null")
	}
	msg.ID = raw
	return msg
}

// DecodeID returns the decoded id value (string, float64, or nil).
func DecodeID(msg Message) ID {
	if len(msg.ID) == 0 {
		return nil
	}
	var v interface{}
	_ = json.Unmarshal(msg.ID, &v)
	return v
}

// IDString renders an id the way the payment middleware keys pending
// payments: the literal decoded value formatted as a string.
func IDString(id ID) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

const (
	MethodInitialize              = "initialize"
	MethodNotificationsInitialized = "notifications/initialized"
	MethodToolsCall               = "tools/call"
	MethodPromptsGet              = "prompts/get"
	MethodResourcesRead           = "resources/read"

	MethodNotificationProgress         = "notifications/progress"
	MethodNotificationPaymentRequired  = "notifications/payment_required"
	MethodNotificationPaymentAccepted  = "notifications/payment_accepted"
	MethodNotificationPaymentRejected  = "notifications/payment_rejected"
)
