package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nostrmcp/bridge/internal/bridgeerr"
	"github.com/nostrmcp/bridge/internal/bridgeevent"
	"github.com/nostrmcp/bridge/internal/nostrevent"
)

const (
	dialTimeout  = 10 * time.Second
	publishWait  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Pool is a Handler backed by one websocket connection per relay URL. A
// single Subscribe call fans its REQ out to every connected relay and
// merges their events through one callback, de-duplication being the
// caller's concern (internal/transport already de-dupes by event id).
type Pool struct {
	urls   []string
	events bridgeevent.Func

	mu    sync.Mutex
	conns map[string]*relayConn

	subMu sync.Mutex
	subs  map[string]*subscription
}

type relayConn struct {
	url string
	ws  *websocket.Conn
	mu  sync.Mutex // guards WriteMessage; gorilla disallows concurrent writers

	pendingMu sync.Mutex
	pending   map[string]chan okResult
}

type okResult struct {
	accepted bool
	message  string
}

type subscription struct {
	filters []Filter
	onEvent EventCallback
}

// NewPool constructs a Pool for the given relay URLs. Connect must be
// called before Publish or Subscribe.
func NewPool(urls []string, events bridgeevent.Func) *Pool {
	return &Pool{
		urls:   urls,
		events: events,
		conns:  make(map[string]*relayConn),
		subs:   make(map[string]*subscription),
	}
}

func (p *Pool) Connect(ctx context.Context) error {
	if len(p.urls) == 0 {
		return bridgeerr.New(bridgeerr.CodeInvalidRelayURL, "no relay URLs configured")
	}

	var lastErr error
	connected := 0
	for _, raw := range p.urls {
		if err := p.connectOne(ctx, raw); err != nil {
			lastErr = err
			bridgeevent.Emit(p.events, bridgeevent.Warning, "relay_connect_failed", map[string]interface{}{
				"url": raw, "err": err.Error(),
			})
			continue
		}
		connected++
	}
	if connected == 0 {
		return bridgeerr.Wrap(bridgeerr.CodeInvalidRelayURL, "failed to connect to any relay", lastErr)
	}
	return nil
}

func (p *Pool) connectOne(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("relay: invalid relay URL %q", raw)
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, raw, nil)
	if err != nil {
		return fmt.Errorf("relay: dial %q: %w", raw, err)
	}

	rc := &relayConn{url: raw, ws: conn, pending: make(map[string]chan okResult)}
	p.mu.Lock()
	p.conns[raw] = rc
	p.mu.Unlock()

	go p.readLoop(rc)
	return nil
}

func (p *Pool) readLoop(rc *relayConn) {
	for {
		_, raw, err := rc.ws.ReadMessage()
		if err != nil {
			bridgeevent.Emit(p.events, bridgeevent.Warning, "relay_read_failed", map[string]interface{}{
				"url": rc.url, "err": err.Error(),
			})
			return
		}
		p.handleFrame(rc, raw)
	}
}

// handleFrame dispatches one NIP-01 wire frame: ["EVENT", subID, event],
// ["OK", eventID, accepted, message], ["EOSE", subID], ["NOTICE", msg].
func (p *Pool) handleFrame(rc *relayConn, raw []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
		return
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return
	}

	switch label {
	case "EVENT":
		if len(frame) < 3 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		var ev nostrevent.Event
		if err := json.Unmarshal(frame[2], &ev); err != nil {
			return
		}
		p.dispatchEvent(subID, ev)

	case "OK":
		if len(frame) < 3 {
			return
		}
		var eventID string
		var accepted bool
		var message string
		_ = json.Unmarshal(frame[1], &eventID)
		_ = json.Unmarshal(frame[2], &accepted)
		if len(frame) >= 4 {
			_ = json.Unmarshal(frame[3], &message)
		}
		rc.resolvePending(eventID, okResult{accepted: accepted, message: message})
	}
}

func (rc *relayConn) resolvePending(eventID string, result okResult) {
	rc.pendingMu.Lock()
	ch, ok := rc.pending[eventID]
	if ok {
		delete(rc.pending, eventID)
	}
	rc.pendingMu.Unlock()
	if ok {
		ch <- result
	}
}

func (p *Pool) dispatchEvent(subID string, ev nostrevent.Event) {
	p.subMu.Lock()
	sub, ok := p.subs[subID]
	p.subMu.Unlock()
	if !ok {
		return
	}
	sub.onEvent(context.Background(), ev)
}

// Publish sends ev to every connected relay and succeeds as soon as any one
// of them acknowledges with OK true.
func (p *Pool) Publish(ctx context.Context, ev nostrevent.Event) error {
	p.mu.Lock()
	conns := make([]*relayConn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	if len(conns) == 0 {
		return bridgeerr.New(bridgeerr.CodePublishFailed, "no connected relays")
	}

	payload, err := json.Marshal([]interface{}{"EVENT", ev})
	if err != nil {
		return fmt.Errorf("relay: marshal EVENT frame: %w", err)
	}

	results := make(chan error, len(conns))
	for _, rc := range conns {
		rc := rc
		go func() {
			results <- p.publishToOne(ctx, rc, ev.ID, payload)
		}()
	}

	var lastErr error
	for range conns {
		if err := <-results; err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return bridgeerr.Wrap(bridgeerr.CodePublishFailed, "publish rejected by all relays", lastErr)
}

func (p *Pool) publishToOne(ctx context.Context, rc *relayConn, eventID string, payload []byte) error {
	ch := make(chan okResult, 1)
	rc.pendingMu.Lock()
	rc.pending[eventID] = ch
	rc.pendingMu.Unlock()

	rc.mu.Lock()
	_ = rc.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := rc.ws.WriteMessage(websocket.TextMessage, payload)
	rc.mu.Unlock()
	if err != nil {
		rc.pendingMu.Lock()
		delete(rc.pending, eventID)
		rc.pendingMu.Unlock()
		return err
	}

	select {
	case res := <-ch:
		if !res.accepted {
			return fmt.Errorf("relay %s rejected event: %s", rc.url, res.message)
		}
		return nil
	case <-time.After(publishWait):
		return fmt.Errorf("relay %s: publish timed out", rc.url)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe issues a REQ to every connected relay and merges results into
// onEvent. The returned Unsubscribe sends CLOSE to each relay.
func (p *Pool) Subscribe(ctx context.Context, filters []Filter, onEvent EventCallback) (Unsubscribe, error) {
	subID := uuid.NewString()

	p.subMu.Lock()
	p.subs[subID] = &subscription{filters: filters, onEvent: onEvent}
	p.subMu.Unlock()

	frame := make([]interface{}, 0, 2+len(filters))
	frame = append(frame, "REQ", subID)
	for _, f := range filters {
		frame = append(frame, toWireFilter(f))
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("relay: marshal REQ frame: %w", err)
	}

	p.mu.Lock()
	conns := make([]*relayConn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, rc := range conns {
		rc.mu.Lock()
		_ = rc.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = rc.ws.WriteMessage(websocket.TextMessage, payload)
		rc.mu.Unlock()
	}

	return func() {
		p.subMu.Lock()
		delete(p.subs, subID)
		p.subMu.Unlock()

		closeFrame, _ := json.Marshal([]interface{}{"CLOSE", subID})
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, rc := range p.conns {
			rc.mu.Lock()
			_ = rc.ws.WriteMessage(websocket.TextMessage, closeFrame)
			rc.mu.Unlock()
		}
	}, nil
}

func toWireFilter(f Filter) map[string]interface{} {
	wire := map[string]interface{}{}
	if len(f.Kinds) > 0 {
		wire["kinds"] = f.Kinds
	}
	for tag, values := range f.Tags {
		wire["#"+tag] = values
	}
	if f.Since > 0 {
		wire["since"] = f.Since
	}
	if f.Limit > 0 {
		wire["limit"] = f.Limit
	}
	return wire
}

func (p *Pool) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, rc := range p.conns {
		_ = rc.ws.Close()
		delete(p.conns, url)
	}
	return nil
}
