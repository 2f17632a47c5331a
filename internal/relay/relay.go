// Package relay defines the RelayHandler capability the transports depend
// on and ships one concrete implementation over a pool of websocket relay
// connections.
package relay

import (
	"context"

	"github.com/nostrmcp/bridge/internal/nostrevent"
)

// Filter selects which events a subscription receives. It mirrors NIP-01
// REQ filters closely enough for this module's needs: kinds, "#p" tagged
// recipients, and an optional since/limit.
type Filter struct {
	Kinds []int
	Tags  map[string][]string // tag name (e.g. "p") -> acceptable values
	Since int64
	Limit int
}

// EventCallback receives each event a subscription matches.
type EventCallback func(ctx context.Context, ev nostrevent.Event)

// Unsubscribe cancels a subscription started by Handler.Subscribe.
type Unsubscribe func()

// Handler is the capability both transports depend on to reach the event
// network. publish succeeds if any relay in the handler's pool accepts the
// event and fails only when all relays reject it.
type Handler interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, ev nostrevent.Event) error
	Subscribe(ctx context.Context, filters []Filter, onEvent EventCallback) (Unsubscribe, error)
	Disconnect(ctx context.Context) error
}
