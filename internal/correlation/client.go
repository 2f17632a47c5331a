// Package correlation holds the bounded request/response bookkeeping both
// transports need: the client side tracks its own outstanding requests, the
// server side tracks inbound event routes and per-peer sessions.
package correlation

import (
	"github.com/nostrmcp/bridge/internal/bridgeerr"
	"github.com/nostrmcp/bridge/internal/bridgeevent"
	"github.com/nostrmcp/bridge/internal/lru"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
)

// PendingRequest is what the client transport remembers about a request it
// has published, keyed by the published event's id.
type PendingRequest struct {
	OriginalRequestID rpcmsg.ID
	IsInitialize      bool
	ProgressToken     string
}

// ClientStore is a thin wrapper around the bounded map: it resolves a
// response event back to the caller's original request id.
type ClientStore struct {
	pending *lru.Map[PendingRequest]
	events  bridgeevent.Func
	onEvict func(eventID string, pending PendingRequest)
}

// NewClientStore constructs a store bounded to capacity. onEvict, if set, is
// invoked when a pending request is evicted for capacity reasons (not
// resolved), so the transport can fail the waiting caller.
func NewClientStore(capacity int, events bridgeevent.Func, onEvict func(eventID string, pending PendingRequest)) *ClientStore {
	s := &ClientStore{events: events, onEvict: onEvict}
	s.pending = lru.New[PendingRequest](capacity, s.handleEvict)
	return s
}

func (s *ClientStore) handleEvict(eventID string, pending PendingRequest) {
	bridgeevent.Emit(s.events, bridgeevent.Warning, "pending_request_evicted", map[string]interface{}{
		"eventId": eventID,
	})
	if s.onEvict != nil {
		s.onEvict(eventID, pending)
	}
}

// Register records a newly-published request under its event id.
func (s *ClientStore) Register(eventID string, pending PendingRequest) {
	s.pending.Set(eventID, pending)
}

// ResolveResponse looks up and removes the pending entry for eventID,
// returning it and whether a match was found. Callers overwrite the
// response's id with OriginalRequestID before delivering it.
func (s *ClientStore) ResolveResponse(eventID string) (PendingRequest, bool) {
	pending, ok := s.pending.Get(eventID)
	if !ok {
		return PendingRequest{}, false
	}
	s.pending.Delete(eventID)
	return pending, true
}

// GetPendingRequest returns metadata without removing it, used by progress
// notification routing.
func (s *ClientStore) GetPendingRequest(eventID string) (PendingRequest, bool) {
	return s.pending.Peek(eventID)
}

// FindByProgressToken scans pending requests for one whose token matches.
// The bound is fixed and small, so a linear scan is acceptable (mirrors the
// server store's removeRoutesForClient).
func (s *ClientStore) FindByProgressToken(token string) (string, PendingRequest, bool) {
	if token == "" {
		return "", PendingRequest{}, false
	}
	for _, entry := range s.pending.Entries() {
		if entry.Value.ProgressToken == token {
			return entry.Key, entry.Value, true
		}
	}
	return "", PendingRequest{}, false
}

// Size returns the number of outstanding requests.
func (s *ClientStore) Size() int { return s.pending.Size() }

// Clear drops every pending request without invoking onEvict, used by
// transport Stop.
func (s *ClientStore) Clear() { s.pending.Clear() }

// EvictionError is the error delivered to a caller whose request was evicted
// from the pending table before it resolved.
func EvictionError() error {
	return bridgeerr.New(bridgeerr.CodePendingEvicted, "pending request evicted before a response arrived")
}
