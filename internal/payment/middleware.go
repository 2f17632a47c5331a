package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nostrmcp/bridge/internal/bridgeerr"
	"github.com/nostrmcp/bridge/internal/bridgeevent"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
	"github.com/nostrmcp/bridge/internal/transport"
)

// DefaultPaymentTTL is used when a processor's quote omits one.
const DefaultPaymentTTL = 5 * time.Minute

// DefaultMaxPendingPayments bounds the pending-payment table.
const DefaultMaxPendingPayments = 1000

// purgeBatchSize is how many expired entries step 3 opportunistically
// sweeps per invocation.
const purgeBatchSize = 25

// PricedCapability names one gated method+target pair and its price.
type PricedCapability struct {
	Method       string // "tools/call", "prompts/get", or "resources/read"
	Name         string // tool/prompt name, or resource uri; empty matches any
	Amount       string
	MaxAmount    string
	CurrencyUnit string
	Description  string
}

// ResolvePriceInput is passed to a caller-supplied ResolvePrice hook so it
// can override the capability's static price per request.
type ResolvePriceInput struct {
	Capability     PricedCapability
	Request        rpcmsg.Message
	ClientPubKey   string
	RequestEventID string
}

// ResolvePriceResult is what ResolvePrice returns: either a quote to
// proceed with, or Reject to bounce the request without charging.
type ResolvePriceResult struct {
	Amount      string
	Description string
	Meta        map[string]interface{}
	Reject      bool
	RejectMsg   string
}

// ResolvePriceFunc overrides a capability's static price per request.
type ResolvePriceFunc func(ctx context.Context, in ResolvePriceInput) ResolvePriceResult

// Sender is the subset of transport.Server the middleware needs to publish
// payment lifecycle notifications correlated to the original request,
// without consuming that request's route (transport.Server.SendCorrelated).
type Sender interface {
	SendCorrelated(ctx context.Context, requestEventID string, msg rpcmsg.Message) error
}

// Config configures a Middleware.
type Config struct {
	Processors         []Processor
	PricedCapabilities []PricedCapability
	ResolvePrice       ResolvePriceFunc
	PaymentTTL         time.Duration // defaults to DefaultPaymentTTL
	MaxPendingPayments int           // defaults to DefaultMaxPendingPayments
	Sender             Sender
	Events             bridgeevent.Func
}

type pendingPayment struct {
	done      chan struct{}
	expiresAt time.Time
}

// Middleware is the inbound server middleware that gates priced
// capabilities behind a payment handshake. Wire it into
// transport.Server.Middlewares.
type Middleware struct {
	cfg Config

	mu      sync.Mutex
	pending map[string]*pendingPayment
}

// New constructs a Middleware from cfg, applying documented defaults.
func New(cfg Config) *Middleware {
	if cfg.PaymentTTL <= 0 {
		cfg.PaymentTTL = DefaultPaymentTTL
	}
	if cfg.MaxPendingPayments <= 0 {
		cfg.MaxPendingPayments = DefaultMaxPendingPayments
	}
	return &Middleware{cfg: cfg, pending: make(map[string]*pendingPayment)}
}

// Handle implements transport.Middleware.
func (m *Middleware) Handle(ctx context.Context, cctx transport.ClientContext, msg rpcmsg.Message, forward transport.Forward) error {
	if msg.Classify() != rpcmsg.KindRequest {
		return forward(ctx, msg)
	}

	priced, ok := m.matchCapability(msg)
	if !ok {
		return forward(ctx, msg)
	}

	now := time.Now()
	m.purgeExpired(now)

	requestEventID := rpcmsg.IDString(rpcmsg.DecodeID(msg))

	m.mu.Lock()
	if existing, ok := m.pending[requestEventID]; ok && existing.expiresAt.After(now) {
		m.mu.Unlock()
		<-existing.done
		return nil
	}
	pp := &pendingPayment{done: make(chan struct{}), expiresAt: now.Add(m.cfg.PaymentTTL)}
	if len(m.pending) >= m.cfg.MaxPendingPayments {
		m.purgeExpired(now)
	}
	if len(m.pending) >= m.cfg.MaxPendingPayments {
		// still full: drop the entry closest to expiry to stay within the bound.
		var soonestID string
		var soonest *pendingPayment
		for id, p := range m.pending {
			if soonest == nil || p.expiresAt.Before(soonest.expiresAt) {
				soonestID, soonest = id, p
			}
		}
		delete(m.pending, soonestID)
	}
	m.pending[requestEventID] = pp
	m.mu.Unlock()

	defer func() {
		close(pp.done)
		m.mu.Lock()
		if m.pending[requestEventID] == pp {
			delete(m.pending, requestEventID)
		}
		m.mu.Unlock()
	}()

	processor := m.chooseProcessor(cctx.ClientPmis)
	if processor == nil {
		return bridgeerr.New(bridgeerr.CodePaymentRejected, "no payment processor configured")
	}

	quote := m.resolveQuote(ctx, priced, msg, cctx.ClientPubKey, requestEventID)
	if quote.Reject {
		return m.sendRejected(ctx, requestEventID, processor.PMI(), priced, quote.RejectMsg)
	}

	paymentRequired, err := processor.CreatePaymentRequired(ctx, CreatePaymentRequiredInput{
		Amount:         quote.Amount,
		Description:    quote.Description,
		RequestEventID: requestEventID,
		ClientPubKey:   cctx.ClientPubKey,
	})
	if err != nil {
		return fmt.Errorf("payment: create payment required: %w", err)
	}

	meta := mergeMeta(paymentRequired.Meta, quote.Meta)
	if err := m.sendNotification(ctx, requestEventID, rpcmsg.MethodNotificationPaymentRequired, map[string]interface{}{
		"amount":      paymentRequired.Amount,
		"pay_req":     paymentRequired.PayReq,
		"pmi":         paymentRequired.PMI,
		"description": paymentRequired.Description,
		"ttl":         paymentRequired.TTLSeconds,
		"_meta":       meta,
	}); err != nil {
		return fmt.Errorf("payment: send payment_required: %w", err)
	}

	ttl := time.Duration(paymentRequired.TTLSeconds) * time.Second
	if paymentRequired.TTLSeconds <= 0 {
		ttl = DefaultPaymentTTL
	}
	if ttl > m.cfg.PaymentTTL {
		ttl = m.cfg.PaymentTTL
	}

	verifyCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	verified, err := processor.VerifyPayment(verifyCtx, VerifyPaymentInput{
		PayReq:         paymentRequired.PayReq,
		RequestEventID: requestEventID,
		ClientPubKey:   cctx.ClientPubKey,
	})
	if err != nil {
		bridgeevent.Emit(m.cfg.Events, bridgeevent.Warning, "payment_verify_failed", map[string]interface{}{
			"requestEventId": requestEventID, "err": err.Error(),
		})
		if verifyCtx.Err() != nil {
			return bridgeerr.Wrap(bridgeerr.CodePaymentTimeout, "payment not settled before ttl expired", err)
		}
		return bridgeerr.Wrap(bridgeerr.CodePaymentRejected, "payment verification failed", err)
	}

	if err := m.sendNotification(ctx, requestEventID, rpcmsg.MethodNotificationPaymentAccepted, map[string]interface{}{
		"amount": paymentRequired.Amount,
		"pmi":    paymentRequired.PMI,
		"_meta":  verified.Meta,
	}); err != nil {
		return fmt.Errorf("payment: send payment_accepted: %w", err)
	}

	return forward(ctx, msg)
}

func (m *Middleware) sendRejected(ctx context.Context, requestEventID, pmi string, priced PricedCapability, rejectMsg string) error {
	return m.sendNotification(ctx, requestEventID, rpcmsg.MethodNotificationPaymentRejected, map[string]interface{}{
		"pmi":     pmi,
		"amount":  priced.Amount,
		"message": rejectMsg,
	})
}

func (m *Middleware) sendNotification(ctx context.Context, requestEventID, method string, payload map[string]interface{}) error {
	if m.cfg.Sender == nil {
		return fmt.Errorf("payment: no sender configured")
	}
	paramsRaw, err := marshalParams(payload)
	if err != nil {
		return err
	}
	notif := rpcmsg.Message{
		JSONRPC: rpcmsg.Version,
		Method:  method,
		Params:  paramsRaw,
	}
	return m.cfg.Sender.SendCorrelated(ctx, requestEventID, notif)
}

func (m *Middleware) resolveQuote(ctx context.Context, priced PricedCapability, msg rpcmsg.Message, clientPubKey, requestEventID string) ResolvePriceResult {
	if m.cfg.ResolvePrice == nil {
		return ResolvePriceResult{Amount: priced.Amount, Description: priced.Description}
	}
	result := m.cfg.ResolvePrice(ctx, ResolvePriceInput{
		Capability:     priced,
		Request:        msg,
		ClientPubKey:   clientPubKey,
		RequestEventID: requestEventID,
	})
	if result.Reject {
		return result
	}
	if result.Amount == "" {
		result.Amount = priced.Amount
	}
	if result.Description == "" {
		result.Description = priced.Description
	}
	return result
}

func (m *Middleware) chooseProcessor(clientPmis []string) Processor {
	for _, pmi := range clientPmis {
		for _, p := range m.cfg.Processors {
			if p.PMI() == pmi {
				return p
			}
		}
	}
	if len(m.cfg.Processors) > 0 {
		return m.cfg.Processors[0]
	}
	return nil
}

// matchCapability implements the method-to-param matching: tools/call ->
// params.name, prompts/get -> params.name, resources/read -> params.uri,
// everything else only matches an unnamed capability.
func (m *Middleware) matchCapability(msg rpcmsg.Message) (PricedCapability, bool) {
	params, _ := rpcmsg.DecodeParams(msg)
	var target string
	switch msg.Method {
	case rpcmsg.MethodToolsCall, rpcmsg.MethodPromptsGet:
		target = params.Name
	case rpcmsg.MethodResourcesRead:
		target = params.URI
	}
	for _, priced := range m.cfg.PricedCapabilities {
		if priced.Method != msg.Method {
			continue
		}
		if priced.Name == "" || priced.Name == target {
			return priced, true
		}
	}
	return PricedCapability{}, false
}

func (m *Middleware) purgeExpired(now time.Time) {
	purged := 0
	for id, pp := range m.pending {
		if purged >= purgeBatchSize {
			return
		}
		if !pp.expiresAt.After(now) {
			delete(m.pending, id)
			purged++
		}
	}
}

func mergeMeta(base, override map[string]interface{}) map[string]interface{} {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func marshalParams(payload map[string]interface{}) ([]byte, error) {
	return json.Marshal(payload)
}
