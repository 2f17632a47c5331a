package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nostrmcp/bridge/internal/bridgeerr"
	"github.com/nostrmcp/bridge/internal/bridgeevent"
	"github.com/nostrmcp/bridge/internal/correlation"
	"github.com/nostrmcp/bridge/internal/giftwrap"
	"github.com/nostrmcp/bridge/internal/lru"
	"github.com/nostrmcp/bridge/internal/nostrevent"
	"github.com/nostrmcp/bridge/internal/relay"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
	"github.com/nostrmcp/bridge/internal/signing"
	"github.com/nostrmcp/bridge/internal/stateless"
)

// DefaultSeenCacheSize bounds the dedup cache both transports use to ignore
// events they've already processed.
const DefaultSeenCacheSize = 2048

// DefaultPendingCapacity bounds the client's outstanding-request table.
const DefaultPendingCapacity = 1024

// OutboundTagHook lets a caller append extra tags (e.g. client capability
// advertisements) to every outbound app-message event.
type OutboundTagHook func(msg rpcmsg.Message) nostrevent.Tags

// PaymentHandlerInput is what the client delivers to a PaymentHandler when a
// notifications/payment_required arrives.
type PaymentHandlerInput struct {
	Amount         string
	PayReq         string
	PMI            string
	Description    string
	RequestEventID string
}

// PaymentHandler attempts payment for a pmi this client supports. Resolution
// of Handle implies the payment was attempted; it does not itself confirm
// settlement — the server's payment_accepted/payment_rejected notification
// does that.
type PaymentHandler interface {
	PMI() string
	Handle(ctx context.Context, in PaymentHandlerInput) error
}

type paymentRequiredParams struct {
	Amount      string `json:"amount"`
	PayReq      string `json:"pay_req"`
	PMI         string `json:"pmi"`
	Description string `json:"description,omitempty"`
}

// Client implements the client half of the Nostr transport: an opaque
// send/receive channel for the app layer, backed by signed events on the
// wire.
type Client struct {
	Signer          signing.Signer
	Relay           relay.Handler
	ServerPubKey    string
	EncryptionMode  EncryptionMode
	IsStateless     bool
	OutboundTagHook OutboundTagHook
	WrapKind        int // defaults to nostrevent.KindGiftWrapEph
	Events          bridgeevent.Func
	OnReceive       func(msg rpcmsg.Message)
	PaymentHandlers []PaymentHandler

	ownPubKey string
	seen      *lru.Map[struct{}]
	pending   *correlation.ClientStore
	unsub     relay.Unsubscribe

	mu                        sync.Mutex
	serverIndicatedEncryption bool
}

// Start connects the relay handler, resolves the client's own pubkey, and
// subscribes to events addressed to it.
func (c *Client) Start(ctx context.Context) error {
	if c.WrapKind == 0 {
		c.WrapKind = nostrevent.KindGiftWrapEph
	}
	c.seen = lru.New[struct{}](DefaultSeenCacheSize, nil)
	c.pending = correlation.NewClientStore(DefaultPendingCapacity, c.Events, c.onPendingEvicted)

	if err := c.Relay.Connect(ctx); err != nil {
		return fmt.Errorf("transport: connect relay: %w", err)
	}

	pub, err := c.Signer.GetPublicKey(ctx)
	if err != nil {
		return fmt.Errorf("transport: get own pubkey: %w", err)
	}
	c.ownPubKey = pub

	filters := []relay.Filter{{
		Kinds: []int{nostrevent.KindAppMessage, nostrevent.KindGiftWrap, nostrevent.KindGiftWrapEph},
		Tags:  map[string][]string{"p": {c.ownPubKey}},
	}}
	unsub, err := c.Relay.Subscribe(ctx, filters, c.onRelayEvent)
	if err != nil {
		return fmt.Errorf("transport: subscribe: %w", err)
	}
	c.unsub = unsub
	return nil
}

// Stop unsubscribes, disconnects the relay handler, and clears the pending
// request table.
func (c *Client) Stop(ctx context.Context) error {
	if c.unsub != nil {
		c.unsub()
	}
	c.pending.Clear()
	return c.Relay.Disconnect(ctx)
}

func (c *Client) onPendingEvicted(eventID string, pending correlation.PendingRequest) {
	if c.OnReceive == nil {
		return
	}
	errResp := rpcmsg.Message{
		JSONRPC: rpcmsg.Version,
		ID:      marshalID(pending.OriginalRequestID),
		Error: &rpcmsg.Error{
			Code:    -32000,
			Message: correlation.EvictionError().Error(),
		},
	}
	c.OnReceive(errResp)
}

// Send publishes msg on the wire, as a direct app-message event or, when the
// negotiated encryption mode calls for it, wrapped under a one-shot key.
func (c *Client) Send(ctx context.Context, msg rpcmsg.Message) error {
	if c.IsStateless {
		claimed, response, err := stateless.Claim(msg)
		if err != nil {
			return err
		}
		if claimed {
			if response != nil && c.OnReceive != nil {
				c.OnReceive(*response)
			}
			return nil
		}
	}

	msg = c.injectClientPubKey(msg)

	raw, err := rpcmsg.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encode message: %w", err)
	}

	tags := nostrevent.Tags{{nostrevent.TagRecipient, c.ServerPubKey}}
	if c.OutboundTagHook != nil {
		tags = append(tags, c.OutboundTagHook(msg)...)
	}

	tmpl := nostrevent.Template{
		PubKey:    c.ownPubKey,
		CreatedAt: time.Now().Unix(),
		Kind:      nostrevent.KindAppMessage,
		Tags:      tags,
		Content:   string(raw),
	}
	ev, err := c.Signer.SignEvent(ctx, tmpl)
	if err != nil {
		return fmt.Errorf("transport: sign event: %w", err)
	}

	if msg.Classify() == rpcmsg.KindRequest {
		meta := messageMeta(msg)
		c.pending.Register(ev.ID, correlation.PendingRequest{
			OriginalRequestID: rpcmsg.DecodeID(msg),
			IsInitialize:      msg.Method == rpcmsg.MethodInitialize,
			ProgressToken:     meta.ProgressToken,
		})
	}

	toPublish := ev
	if c.shouldEncrypt() {
		evJSON, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("transport: marshal event for wrap: %w", err)
		}
		wrapped, err := giftwrap.Wrap(ctx, c.WrapKind, c.ServerPubKey, string(evJSON))
		if err != nil {
			return fmt.Errorf("transport: gift-wrap: %w", err)
		}
		toPublish = wrapped
	}

	if err := c.Relay.Publish(ctx, toPublish); err != nil {
		return fmt.Errorf("transport: publish: %w", err)
	}
	return nil
}

func (c *Client) shouldEncrypt() bool {
	switch c.EncryptionMode {
	case EncryptionRequired:
		return true
	case EncryptionOptional:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.serverIndicatedEncryption
	default:
		return false
	}
}

func (c *Client) injectClientPubKey(msg rpcmsg.Message) rpcmsg.Message {
	if msg.Classify() != rpcmsg.KindRequest {
		return msg
	}
	params, err := rpcmsg.DecodeParams(msg)
	if err != nil {
		return msg
	}
	if params.Meta == nil {
		params.Meta = &rpcmsg.Meta{}
	}
	params.Meta.ClientPubKey = c.ownPubKey
	raw, err := json.Marshal(params)
	if err != nil {
		return msg
	}
	msg.Params = raw
	return msg
}

func messageMeta(msg rpcmsg.Message) rpcmsg.Meta {
	params, err := rpcmsg.DecodeParams(msg)
	if err != nil || params.Meta == nil {
		return rpcmsg.Meta{}
	}
	return *params.Meta
}

func (c *Client) onRelayEvent(ctx context.Context, ev nostrevent.Event) {
	c.processIncomingEvent(ctx, ev)
}

func (c *Client) processIncomingEvent(ctx context.Context, ev nostrevent.Event) {
	if c.seen.Has(ev.ID) {
		return
	}
	c.seen.Set(ev.ID, struct{}{})

	if nostrevent.IsGiftWrapKind(ev.Kind) {
		c.mu.Lock()
		c.serverIndicatedEncryption = true
		c.mu.Unlock()

		plaintext, err := giftwrap.Unwrap(ctx, c.Signer, ev)
		if err != nil {
			if bridgeerr.Is(err, bridgeerr.CodeEncryptionRequired) || c.EncryptionMode == EncryptionRequired {
				bridgeevent.Emit(c.Events, bridgeevent.Error, "decrypt_failed", map[string]interface{}{
					"eventId": ev.ID, "err": err.Error(),
				})
			} else {
				bridgeevent.Emit(c.Events, bridgeevent.Warning, "decrypt_failed_dropped", map[string]interface{}{
					"eventId": ev.ID, "err": err.Error(),
				})
			}
			return
		}
		var inner nostrevent.Event
		if err := json.Unmarshal([]byte(plaintext), &inner); err != nil {
			bridgeevent.Emit(c.Events, bridgeevent.Warning, "wrap_payload_invalid", map[string]interface{}{"eventId": ev.ID})
			return
		}
		c.processIncomingEvent(ctx, inner)
		return
	}

	if ev.Kind != nostrevent.KindAppMessage {
		return
	}

	msg, err := rpcmsg.Decode([]byte(ev.Content))
	if err != nil {
		bridgeevent.Emit(c.Events, bridgeevent.Warning, "schema_invalid", map[string]interface{}{
			"eventId": ev.ID, "err": err.Error(),
		})
		return
	}

	switch msg.Classify() {
	case rpcmsg.KindResponse:
		c.handleResponse(ev, msg)
	case rpcmsg.KindNotification:
		c.handleNotification(ev, msg)
	default:
		if c.OnReceive != nil {
			c.OnReceive(msg)
		}
	}
}

func (c *Client) handleResponse(ev nostrevent.Event, msg rpcmsg.Message) {
	requestEventID, ok := ev.Tags.First(nostrevent.TagCorrelated)
	if !ok {
		requestEventID = rpcmsg.IDString(rpcmsg.DecodeID(msg))
	}

	pending, found := c.pending.ResolveResponse(requestEventID)
	if !found {
		return // duplicate or late response; drop silently
	}
	msg = rpcmsg.WithID(msg, pending.OriginalRequestID)
	if c.OnReceive != nil {
		c.OnReceive(msg)
	}
}

func (c *Client) handleNotification(ev nostrevent.Event, msg rpcmsg.Message) {
	if msg.Method == rpcmsg.MethodNotificationProgress {
		params, err := rpcmsg.DecodeParams(msg)
		if err == nil && params.Meta != nil && params.Meta.ProgressToken != "" {
			if _, pending, ok := c.pending.FindByProgressToken(params.Meta.ProgressToken); ok {
				forwarded := rpcmsg.WithID(msg, pending.OriginalRequestID)
				if c.OnReceive != nil {
					c.OnReceive(forwarded)
				}
				return
			}
		}
	}
	if msg.Method == rpcmsg.MethodNotificationPaymentRequired {
		c.dispatchPaymentRequired(ev, msg)
	}
	if c.OnReceive != nil {
		c.OnReceive(msg)
	}
}

// dispatchPaymentRequired hands a payment_required notification to the
// PaymentHandler whose pmi matches, attempting payment in the background so
// the event loop isn't blocked while a wallet/settlement flow runs.
func (c *Client) dispatchPaymentRequired(ev nostrevent.Event, msg rpcmsg.Message) {
	if len(c.PaymentHandlers) == 0 {
		return
	}
	var params paymentRequiredParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		bridgeevent.Emit(c.Events, bridgeevent.Warning, "payment_required_invalid", map[string]interface{}{"eventId": ev.ID})
		return
	}
	handler := c.choosePaymentHandler(params.PMI)
	if handler == nil {
		return
	}
	requestEventID, ok := ev.Tags.First(nostrevent.TagCorrelated)
	if !ok {
		requestEventID = ev.ID
	}
	go func() {
		if err := handler.Handle(context.Background(), PaymentHandlerInput{
			Amount:         params.Amount,
			PayReq:         params.PayReq,
			PMI:            params.PMI,
			Description:    params.Description,
			RequestEventID: requestEventID,
		}); err != nil {
			bridgeevent.Emit(c.Events, bridgeevent.Warning, "payment_handler_failed", map[string]interface{}{
				"requestEventId": requestEventID, "err": err.Error(),
			})
		}
	}()
}

func (c *Client) choosePaymentHandler(pmi string) PaymentHandler {
	for _, h := range c.PaymentHandlers {
		if h.PMI() == pmi {
			return h
		}
	}
	return nil
}

func marshalID(id rpcmsg.ID) json.RawMessage {
	raw, err := json.Marshal(id)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
