package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nostrmcp/bridge/internal/nostrevent"
	"github.com/nostrmcp/bridge/internal/relay"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
	"github.com/nostrmcp/bridge/internal/signing"
)

// buildAppEventForTest signs a plain (unwrapped) app-message event carrying
// msg, addressed to clientSigner's pubkey, as if published by serverSigner.
func buildAppEventForTest(t *testing.T, serverSigner, clientSigner *signing.LocalSigner, msg rpcmsg.Message) nostrevent.Event {
	t.Helper()
	ctx := context.Background()
	clientPub, err := clientSigner.GetPublicKey(ctx)
	if err != nil {
		t.Fatalf("clientSigner.GetPublicKey: %v", err)
	}
	raw, err := rpcmsg.Encode(msg)
	if err != nil {
		t.Fatalf("rpcmsg.Encode: %v", err)
	}
	tmpl := nostrevent.Template{
		PubKey:    mustPubKey(t, serverSigner),
		CreatedAt: time.Now().Unix(),
		Kind:      nostrevent.KindAppMessage,
		Tags:      nostrevent.Tags{{nostrevent.TagRecipient, clientPub}},
		Content:   string(raw),
	}
	ev, err := serverSigner.SignEvent(ctx, tmpl)
	if err != nil {
		t.Fatalf("SignEvent: %v", err)
	}
	return ev
}

func mustPubKey(t *testing.T, signer *signing.LocalSigner) string {
	t.Helper()
	pub, err := signer.GetPublicKey(context.Background())
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}
	return pub
}

// sharedRelay is an in-process relay.Handler: Publish on one handle delivers
// synchronously to every other handle's matching subscription, letting
// client/server transport tests run without a network.
type sharedRelay struct {
	mu   sync.Mutex
	subs map[int]*fakeSub
	next int
}

type fakeSub struct {
	filters []relay.Filter
	onEvent relay.EventCallback
}

func newSharedRelay() *sharedRelay {
	return &sharedRelay{subs: make(map[int]*fakeSub)}
}

// Handle returns a relay.Handler view onto the shared bus.
func (r *sharedRelay) Handle() relay.Handler {
	return &fakeHandler{bus: r}
}

type fakeHandler struct {
	bus *sharedRelay
}

func (h *fakeHandler) Connect(ctx context.Context) error { return nil }

func (h *fakeHandler) Publish(ctx context.Context, ev nostrevent.Event) error {
	h.bus.mu.Lock()
	subs := make([]*fakeSub, 0, len(h.bus.subs))
	for _, s := range h.bus.subs {
		subs = append(subs, s)
	}
	h.bus.mu.Unlock()

	for _, s := range subs {
		if matches(s.filters, ev) {
			s.onEvent(ctx, ev)
		}
	}
	return nil
}

func (h *fakeHandler) Subscribe(ctx context.Context, filters []relay.Filter, onEvent relay.EventCallback) (relay.Unsubscribe, error) {
	h.bus.mu.Lock()
	id := h.bus.next
	h.bus.next++
	h.bus.subs[id] = &fakeSub{filters: filters, onEvent: onEvent}
	h.bus.mu.Unlock()

	return func() {
		h.bus.mu.Lock()
		delete(h.bus.subs, id)
		h.bus.mu.Unlock()
	}, nil
}

func (h *fakeHandler) Disconnect(ctx context.Context) error { return nil }

func matches(filters []relay.Filter, ev nostrevent.Event) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if filterMatches(f, ev) {
			return true
		}
	}
	return false
}

func filterMatches(f relay.Filter, ev nostrevent.Event) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == ev.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for tagName, values := range f.Tags {
		got := ev.Tags.All(tagName)
		matched := false
		for _, v := range values {
			for _, g := range got {
				if v == g {
					matched = true
				}
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
