package correlation

import (
	"sync"

	"github.com/nostrmcp/bridge/internal/bridgeevent"
	"github.com/nostrmcp/bridge/internal/lru"
)

// Session is the opaque per-client state the server transport's app layer
// owns. Close is invoked exactly once, either by explicit CloseSession or by
// eviction, and may run asynchronously.
type Session struct {
	Handle interface{}
	Close  func()
}

// SessionFactory builds a new session for a client pubkey the store hasn't
// seen before (or has since evicted).
type SessionFactory func(clientPubKey string, isPublicClient bool) Session

// SessionStore bounds the number of concurrently tracked client sessions,
// evicting the oldest on overflow and guaranteeing its close callback has
// been initiated before a new session for the same key is installed.
type SessionStore struct {
	mu       sync.Mutex
	sessions *lru.Map[Session]
	factory  SessionFactory
	events   bridgeevent.Func
}

// NewSessionStore constructs a store bounded to maxSessions.
func NewSessionStore(maxSessions int, factory SessionFactory, events bridgeevent.Func) *SessionStore {
	s := &SessionStore{factory: factory, events: events}
	s.sessions = lru.New[Session](maxSessions, s.handleEvict)
	return s
}

func (s *SessionStore) handleEvict(pubkey string, session Session) {
	bridgeevent.Emit(s.events, bridgeevent.Warning, "session_evicted", map[string]interface{}{
		"clientPubkey": pubkey,
	})
	runClose(session)
}

// runClose invokes a session's close callback without blocking the caller on
// its completion, tolerating a nil Close.
func runClose(session Session) {
	if session.Close == nil {
		return
	}
	go session.Close()
}

// GetOrCreateSession returns the existing session for pubkey, or builds one
// via the factory. Capacity eviction (oldest session first, close invoked
// synchronously-initiated) happens as a side effect of the underlying map's
// Set, before the new entry is installed — satisfying the ordering
// guarantee that the evicted session's close has started before the new one
// is inserted.
func (s *SessionStore) GetOrCreateSession(clientPubKey string, isPublicClient bool) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions.Get(clientPubKey); ok {
		return existing
	}
	session := s.factory(clientPubKey, isPublicClient)
	s.sessions.Set(clientPubKey, session)
	return session
}

// CloseSession manually removes and closes the session for pubkey, if any.
func (s *SessionStore) CloseSession(clientPubKey string) {
	s.mu.Lock()
	session, ok := s.sessions.Peek(clientPubKey)
	s.sessions.Delete(clientPubKey)
	s.mu.Unlock()
	if ok {
		runClose(session)
	}
}

// CloseAll closes every tracked session and clears the store, used by
// transport Stop.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	entries := s.sessions.Entries()
	s.sessions.Clear()
	s.mu.Unlock()
	for _, entry := range entries {
		runClose(entry.Value)
	}
}

// Size returns the number of tracked sessions.
func (s *SessionStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Size()
}
