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
	"github.com/nostrmcp/bridge/internal/taskqueue"
)

// DefaultMaxSessions bounds the number of concurrently tracked client
// sessions when a Server is not given one explicitly.
const DefaultMaxSessions = 4096

// ClientContext accompanies every inbound request/notification through the
// middleware chain.
type ClientContext struct {
	ClientPubKey string
	ClientPmis   []string
}

// Forward continues the middleware chain (or, at the end of it, reaches the
// app handler). A non-nil error short-circuits the chain; the server
// reports it back to the client as an error response.
type Forward func(ctx context.Context, msg rpcmsg.Message) error

// Middleware wraps inbound request/notification handling. The payment
// middleware (internal/payment) is the one concrete implementation.
type Middleware func(ctx context.Context, cctx ClientContext, msg rpcmsg.Message, forward Forward) error

// Server implements the server half of the Nostr transport.
type Server struct {
	Signer           signing.Signer
	Relay            relay.Handler
	EncryptionMode   EncryptionMode
	IsPublicServer   bool
	MaxSessions      int
	WrapKind         int
	Events           bridgeevent.Func
	Tasks            *taskqueue.Queue
	CreateAppSession correlation.SessionFactory
	Handler          func(ctx context.Context, clientPubKey string, msg rpcmsg.Message)
	Middlewares      []Middleware

	// RateLimiter, if set, gates inbound requests/notifications per client
	// pubkey ahead of the middleware chain. Nil disables rate limiting.
	RateLimiter *PubkeyRateLimiter

	// AnnouncementContent maps an announcement kind to the JSON
	// content this server publishes for it. Populated by the caller before
	// PublishAnnouncements runs.
	AnnouncementContent map[int]string

	ownPubKey string
	seen      *lru.Map[struct{}]
	routes    *correlation.ServerStore
	sessions  *correlation.SessionStore
	unsub     relay.Unsubscribe

	announceMu       sync.Mutex
	extraTags        nostrevent.Tags
	pricingTags      nostrevent.Tags
	encryptedClients map[string]bool

	publishMu sync.Mutex
	published map[string]struct{}
}

// Start connects the relay handler, subscribes to events addressed to this
// server, and publishes the initial announcement set.
func (s *Server) Start(ctx context.Context) error {
	if s.WrapKind == 0 {
		s.WrapKind = nostrevent.KindGiftWrapEph
	}
	if s.MaxSessions <= 0 {
		s.MaxSessions = DefaultMaxSessions
	}
	if s.Tasks == nil {
		s.Tasks = taskqueue.New(taskqueue.DefaultConcurrency)
	}
	s.seen = lru.New[struct{}](DefaultSeenCacheSize, nil)
	s.routes = correlation.NewServerStore(DefaultPendingCapacity, s.Events)
	s.sessions = correlation.NewSessionStore(s.MaxSessions, s.CreateAppSession, s.Events)
	s.published = make(map[string]struct{})

	if err := s.Relay.Connect(ctx); err != nil {
		return fmt.Errorf("transport: connect relay: %w", err)
	}
	pub, err := s.Signer.GetPublicKey(ctx)
	if err != nil {
		return fmt.Errorf("transport: get own pubkey: %w", err)
	}
	s.ownPubKey = pub

	filters := []relay.Filter{{
		Kinds: []int{nostrevent.KindAppMessage, nostrevent.KindGiftWrap, nostrevent.KindGiftWrapEph},
		Tags:  map[string][]string{"p": {s.ownPubKey}},
	}}
	unsub, err := s.Relay.Subscribe(ctx, filters, s.onRelayEvent)
	if err != nil {
		return fmt.Errorf("transport: subscribe: %w", err)
	}
	s.unsub = unsub

	return s.PublishAnnouncements(ctx)
}

// Stop unsubscribes, closes every session (running its close callback), and
// clears the correlation store.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
	}
	s.sessions.CloseAll()
	s.routes.Clear()
	return s.Relay.Disconnect(ctx)
}

// SetAnnouncementExtraTags stores tags merged into the next announcement
// publication.
func (s *Server) SetAnnouncementExtraTags(tags nostrevent.Tags) {
	s.announceMu.Lock()
	defer s.announceMu.Unlock()
	s.extraTags = tags
}

// SetAnnouncementPricingTags stores the `cap`/`pmi` tags the payment
// middleware assembles (internal/payment/tags.go) for the next announcement.
func (s *Server) SetAnnouncementPricingTags(tags nostrevent.Tags) {
	s.announceMu.Lock()
	defer s.announceMu.Unlock()
	s.pricingTags = tags
}

// PublishAnnouncements publishes one addressable event per configured
// announcement kind, decorated with the currently registered extra and
// pricing tags, using the task queue to cap parallelism.
func (s *Server) PublishAnnouncements(ctx context.Context) error {
	s.announceMu.Lock()
	tags := append(nostrevent.Tags{}, s.extraTags...)
	tags = append(tags, s.pricingTags...)
	s.announceMu.Unlock()

	var wg sync.WaitGroup
	errs := make(chan error, len(s.AnnouncementContent))
	for kind, content := range s.AnnouncementContent {
		kind, content := kind, content
		wg.Add(1)
		submitErr := s.Tasks.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			if err := s.publishAnnouncement(ctx, kind, content, tags); err != nil {
				errs <- err
			}
		})
		if submitErr != nil {
			wg.Done()
			return submitErr
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

func (s *Server) publishAnnouncement(ctx context.Context, kind int, content string, tags nostrevent.Tags) error {
	tmpl := nostrevent.Template{
		PubKey:    s.ownPubKey,
		CreatedAt: time.Now().Unix(),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	ev, err := s.Signer.SignEvent(ctx, tmpl)
	if err != nil {
		return fmt.Errorf("transport: sign announcement kind %d: %w", kind, err)
	}
	return s.Relay.Publish(ctx, ev)
}

func (s *Server) onRelayEvent(ctx context.Context, ev nostrevent.Event) {
	s.processIncomingEvent(ctx, ev, false)
}

func (s *Server) processIncomingEvent(ctx context.Context, ev nostrevent.Event, viaWrap bool) {
	if s.seen.Has(ev.ID) {
		return
	}
	s.seen.Set(ev.ID, struct{}{})

	if nostrevent.IsGiftWrapKind(ev.Kind) {
		plaintext, err := giftwrap.Unwrap(ctx, s.Signer, ev)
		if err != nil {
			if bridgeerr.Is(err, bridgeerr.CodeEncryptionRequired) || s.EncryptionMode == EncryptionRequired {
				bridgeevent.Emit(s.Events, bridgeevent.Error, "decrypt_failed", map[string]interface{}{
					"eventId": ev.ID, "err": err.Error(),
				})
			} else {
				bridgeevent.Emit(s.Events, bridgeevent.Warning, "decrypt_failed_dropped", map[string]interface{}{
					"eventId": ev.ID, "err": err.Error(),
				})
			}
			return
		}
		var inner nostrevent.Event
		if err := json.Unmarshal([]byte(plaintext), &inner); err != nil {
			bridgeevent.Emit(s.Events, bridgeevent.Warning, "wrap_payload_invalid", map[string]interface{}{"eventId": ev.ID})
			return
		}
		s.processIncomingEvent(ctx, inner, true)
		return
	}

	if ev.Kind != nostrevent.KindAppMessage {
		return
	}

	msg, err := rpcmsg.Decode([]byte(ev.Content))
	if err != nil {
		bridgeevent.Emit(s.Events, bridgeevent.Warning, "schema_invalid", map[string]interface{}{
			"eventId": ev.ID, "err": err.Error(),
		})
		return
	}

	kind := msg.Classify()
	if kind != rpcmsg.KindRequest && kind != rpcmsg.KindNotification {
		return
	}

	if s.RateLimiter != nil && !s.RateLimiter.Allow(ev.PubKey) {
		bridgeevent.Emit(s.Events, bridgeevent.Warning, "rate_limited", map[string]interface{}{
			"clientPubkey": ev.PubKey, "eventId": ev.ID,
		})
		return
	}

	s.sessions.GetOrCreateSession(ev.PubKey, s.IsPublicServer)

	params, _ := rpcmsg.DecodeParams(msg)
	var progressToken string
	if params.Meta != nil {
		progressToken = params.Meta.ProgressToken
	}

	s.routes.AddRoute(ev.ID, correlation.EventRoute{
		ClientPubKey:      ev.PubKey,
		OriginalRequestID: rpcmsg.DecodeID(msg),
		ProgressToken:     progressToken,
	})
	if viaWrap {
		s.markRouteEncrypted(ev.PubKey)
	}

	msg = rpcmsg.WithID(msg, ev.ID)

	cctx := ClientContext{ClientPubKey: ev.PubKey, ClientPmis: ev.Tags.All(nostrevent.TagPMI)}
	chain := s.buildChain(cctx)
	if err := chain(ctx, msg); err != nil && kind == rpcmsg.KindRequest {
		errResp := rpcmsg.Message{
			JSONRPC: rpcmsg.Version,
			ID:      msg.ID,
			Error:   &rpcmsg.Error{Code: -32000, Message: err.Error()},
		}
		if sendErr := s.Send(ctx, errResp); sendErr != nil {
			bridgeevent.Emit(s.Events, bridgeevent.Error, "middleware_error_response_failed", map[string]interface{}{
				"eventId": ev.ID, "err": sendErr.Error(),
			})
		}
	}
}

// markRouteEncrypted remembers that clientPubKey has been observed sending
// gift-wrapped events, for the OPTIONAL encryption-mode negotiation on
// replies ("or the client indicated support via the original event").
func (s *Server) markRouteEncrypted(clientPubKey string) {
	s.announceMu.Lock()
	defer s.announceMu.Unlock()
	if s.encryptedClients == nil {
		s.encryptedClients = make(map[string]bool)
	}
	s.encryptedClients[clientPubKey] = true
}

func (s *Server) clientIndicatedEncryption(clientPubKey string) bool {
	s.announceMu.Lock()
	defer s.announceMu.Unlock()
	return s.encryptedClients[clientPubKey]
}

func (s *Server) buildChain(cctx ClientContext) Forward {
	var forward Forward = func(ctx context.Context, msg rpcmsg.Message) error {
		if s.Handler != nil {
			s.Handler(ctx, cctx.ClientPubKey, msg)
		}
		return nil
	}
	for i := len(s.Middlewares) - 1; i >= 0; i-- {
		mw := s.Middlewares[i]
		next := forward
		forward = func(ctx context.Context, msg rpcmsg.Message) error {
			return mw(ctx, cctx, msg, next)
		}
	}
	return forward
}

// Send publishes a response or progress notification back to the client
// whose route it correlates to.
func (s *Server) Send(ctx context.Context, msg rpcmsg.Message) error {
	switch msg.Classify() {
	case rpcmsg.KindResponse:
		return s.sendResponse(ctx, msg)
	case rpcmsg.KindNotification:
		return s.sendProgressNotification(ctx, msg)
	default:
		return fmt.Errorf("transport: Send only handles responses and progress notifications; use SendTo for broadcast")
	}
}

func (s *Server) sendResponse(ctx context.Context, msg rpcmsg.Message) error {
	eventID := rpcmsg.IDString(rpcmsg.DecodeID(msg))

	route, ok := s.routes.GetRoute(eventID)
	if !ok {
		bridgeevent.Emit(s.Events, bridgeevent.Warning, "response_route_missing", map[string]interface{}{"eventId": eventID})
		return nil
	}

	s.publishMu.Lock()
	if _, already := s.published[eventID]; already {
		s.publishMu.Unlock()
		return nil
	}
	s.published[eventID] = struct{}{}
	s.publishMu.Unlock()

	msg = rpcmsg.WithID(msg, route.OriginalRequestID)
	err := s.publishAppMessage(ctx, route.ClientPubKey, eventID, msg, s.clientIndicatedEncryption(route.ClientPubKey))
	s.routes.RemoveEventRoute(eventID)

	s.publishMu.Lock()
	delete(s.published, eventID)
	s.publishMu.Unlock()
	return err
}

func (s *Server) sendProgressNotification(ctx context.Context, msg rpcmsg.Message) error {
	params, err := rpcmsg.DecodeParams(msg)
	if err != nil || params.Meta == nil || params.Meta.ProgressToken == "" {
		return fmt.Errorf("transport: progress notification missing progressToken; use SendTo for broadcast")
	}
	eventID, ok := s.routes.EventIDForProgressToken(params.Meta.ProgressToken)
	if !ok {
		bridgeevent.Emit(s.Events, bridgeevent.Warning, "progress_route_missing", map[string]interface{}{"token": params.Meta.ProgressToken})
		return nil
	}
	route, ok := s.routes.GetRoute(eventID)
	if !ok {
		return nil
	}
	return s.publishAppMessage(ctx, route.ClientPubKey, eventID, msg, s.clientIndicatedEncryption(route.ClientPubKey))
}

// SendTo addresses a notification directly at clientPubKey, bypassing route
// lookup. Used for broadcast-style notifications the caller already knows
// how to address.
func (s *Server) SendTo(ctx context.Context, clientPubKey string, msg rpcmsg.Message) error {
	return s.publishAppMessage(ctx, clientPubKey, "", msg, s.clientIndicatedEncryption(clientPubKey))
}

// SendCorrelated addresses a notification at the client behind
// requestEventID's route, without consuming the route — the payment
// middleware uses this for payment_required/accepted/rejected, which must
// reach the same client as later responses and progress notifications tied
// to the same request.
func (s *Server) SendCorrelated(ctx context.Context, requestEventID string, msg rpcmsg.Message) error {
	route, ok := s.routes.GetRoute(requestEventID)
	if !ok {
		bridgeevent.Emit(s.Events, bridgeevent.Warning, "correlated_notification_route_missing", map[string]interface{}{"eventId": requestEventID})
		return nil
	}
	return s.publishAppMessage(ctx, route.ClientPubKey, requestEventID, msg, s.clientIndicatedEncryption(route.ClientPubKey))
}

func (s *Server) publishAppMessage(ctx context.Context, clientPubKey, requestEventID string, msg rpcmsg.Message, wrap bool) error {
	raw, err := rpcmsg.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encode message: %w", err)
	}

	tags := nostrevent.Tags{{nostrevent.TagRecipient, clientPubKey}}
	if requestEventID != "" {
		tags = append(tags, nostrevent.Tag{nostrevent.TagCorrelated, requestEventID})
	}

	tmpl := nostrevent.Template{
		PubKey:    s.ownPubKey,
		CreatedAt: time.Now().Unix(),
		Kind:      nostrevent.KindAppMessage,
		Tags:      tags,
		Content:   string(raw),
	}
	ev, err := s.Signer.SignEvent(ctx, tmpl)
	if err != nil {
		return fmt.Errorf("transport: sign event: %w", err)
	}

	toPublish := ev
	if s.EncryptionMode == EncryptionRequired || (s.EncryptionMode == EncryptionOptional && wrap) {
		evJSON, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("transport: marshal event for wrap: %w", err)
		}
		wrapped, err := giftwrap.Wrap(ctx, s.WrapKind, clientPubKey, string(evJSON))
		if err != nil {
			return fmt.Errorf("transport: gift-wrap: %w", err)
		}
		toPublish = wrapped
	}

	if err := s.Relay.Publish(ctx, toPublish); err != nil {
		return fmt.Errorf("transport: publish: %w", err)
	}
	return nil
}
