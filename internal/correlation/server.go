package correlation

import (
	"sync"

	"github.com/nostrmcp/bridge/internal/bridgeevent"
	"github.com/nostrmcp/bridge/internal/lru"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
)

// EventRoute is what the server transport remembers about one inbound
// request/notification event, keyed by the event's own id.
type EventRoute struct {
	ClientPubKey      string
	OriginalRequestID rpcmsg.ID
	ProgressToken     string
}

// ServerStore pairs the event-route map with its progress-token reverse
// index, keeping the two in sync on eviction and removal as two LRU maps
// that "move together".
type ServerStore struct {
	mu     sync.Mutex
	routes *lru.Map[EventRoute]
	tokens *lru.Map[string] // progressToken -> eventID
	events bridgeevent.Func
}

// NewServerStore constructs a store bounded to capacity.
func NewServerStore(capacity int, events bridgeevent.Func) *ServerStore {
	s := &ServerStore{events: events}
	s.tokens = lru.New[string](capacity, nil)
	s.routes = lru.New[EventRoute](capacity, s.handleRouteEvict)
	return s
}

// handleRouteEvict runs inside Set's critical section via the underlying
// hashicorp LRU's callback; the caller (AddRoute) already holds s.mu, so
// this must not re-lock.
func (s *ServerStore) handleRouteEvict(eventID string, route EventRoute) {
	bridgeevent.Emit(s.events, bridgeevent.Warning, "event_route_evicted", map[string]interface{}{
		"eventId": eventID,
	})
	if route.ProgressToken != "" {
		s.tokens.Delete(route.ProgressToken)
	}
}

// AddRoute registers a route for an inbound event id.
func (s *ServerStore) AddRoute(eventID string, route EventRoute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes.Set(eventID, route)
	if route.ProgressToken != "" {
		s.tokens.Set(route.ProgressToken, eventID)
	}
}

// GetRoute returns the route for eventID, if present.
func (s *ServerStore) GetRoute(eventID string) (EventRoute, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routes.Get(eventID)
}

// RemoveEventRoute removes a route and, if it carried a progress token, its
// reverse mapping too.
func (s *ServerStore) RemoveEventRoute(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes.Peek(eventID)
	s.routes.Delete(eventID)
	if ok && route.ProgressToken != "" {
		s.tokens.Delete(route.ProgressToken)
	}
}

// RemoveRoutesForClient scans all routes and deletes every one belonging to
// pubkey. O(n) over the bound, which is fixed and small.
func (s *ServerStore) RemoveRoutesForClient(pubkey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []string
	for _, entry := range s.routes.Entries() {
		if entry.Value.ClientPubKey == pubkey {
			matches = append(matches, entry.Key)
		}
	}
	for _, eventID := range matches {
		route, ok := s.routes.Peek(eventID)
		s.routes.Delete(eventID)
		if ok && route.ProgressToken != "" {
			s.tokens.Delete(route.ProgressToken)
		}
	}
}

// EventIDForProgressToken resolves a progress token to the event id whose
// route it belongs to.
func (s *ServerStore) EventIDForProgressToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Get(token)
}

// Clear drops every route and token mapping, used by transport Stop.
func (s *ServerStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes.Clear()
	s.tokens.Clear()
}
