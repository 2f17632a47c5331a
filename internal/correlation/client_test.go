package correlation

import "testing"

func TestClientStoreResolveResponse(t *testing.T) {
	store := NewClientStore(4, nil, nil)
	store.Register("ev1", PendingRequest{OriginalRequestID: "req-1"})

	pending, ok := store.ResolveResponse("ev1")
	if !ok {
		t.Fatal("expected match")
	}
	if pending.OriginalRequestID != "req-1" {
		t.Fatalf("OriginalRequestID = %v", pending.OriginalRequestID)
	}
	if _, ok := store.ResolveResponse("ev1"); ok {
		t.Fatal("expected entry removed after first resolve")
	}
}

func TestClientStoreGetPendingRequestDoesNotRemove(t *testing.T) {
	store := NewClientStore(4, nil, nil)
	store.Register("ev1", PendingRequest{OriginalRequestID: "req-1", ProgressToken: "tok"})

	if _, ok := store.GetPendingRequest("ev1"); !ok {
		t.Fatal("expected pending entry")
	}
	if _, ok := store.GetPendingRequest("ev1"); !ok {
		t.Fatal("GetPendingRequest must not remove the entry")
	}
}

func TestClientStoreFindByProgressToken(t *testing.T) {
	store := NewClientStore(4, nil, nil)
	store.Register("ev1", PendingRequest{OriginalRequestID: "req-1", ProgressToken: "tok-a"})
	store.Register("ev2", PendingRequest{OriginalRequestID: "req-2", ProgressToken: "tok-b"})

	eventID, pending, ok := store.FindByProgressToken("tok-b")
	if !ok || eventID != "ev2" || pending.OriginalRequestID != "req-2" {
		t.Fatalf("got %q, %+v, %v", eventID, pending, ok)
	}
}

func TestClientStoreEvictionNotifiesCallback(t *testing.T) {
	var evictedID string
	store := NewClientStore(1, nil, func(eventID string, pending PendingRequest) {
		evictedID = eventID
	})
	store.Register("ev1", PendingRequest{OriginalRequestID: "req-1"})
	store.Register("ev2", PendingRequest{OriginalRequestID: "req-2"})

	if evictedID != "ev1" {
		t.Fatalf("evictedID = %q; want ev1", evictedID)
	}
}

func TestClientStoreResolveResponseDoesNotNotifyCallback(t *testing.T) {
	notified := false
	store := NewClientStore(4, nil, func(eventID string, pending PendingRequest) {
		notified = true
	})
	store.Register("ev1", PendingRequest{OriginalRequestID: "req-1"})

	if _, ok := store.ResolveResponse("ev1"); !ok {
		t.Fatal("expected match")
	}
	if notified {
		t.Fatal("onEvict fired for a normally-resolved request; want only capacity evictions to notify")
	}
}
