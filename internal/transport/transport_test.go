package transport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nostrmcp/bridge/internal/correlation"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
	"github.com/nostrmcp/bridge/internal/signing"
)

func TestClientServerRequestResponseRoundTrip(t *testing.T) {
	ctx := context.Background()
	bus := newSharedRelay()

	serverSigner, err := signing.GenerateLocalSigner()
	if err != nil {
		t.Fatalf("server key: %v", err)
	}
	clientSigner, err := signing.GenerateLocalSigner()
	if err != nil {
		t.Fatalf("client key: %v", err)
	}
	serverPub, _ := serverSigner.GetPublicKey(ctx)

	var received []rpcmsg.Message
	var mu sync.Mutex

	srv := &Server{
		Signer: serverSigner,
		Relay:  bus.Handle(),
		CreateAppSession: func(pubkey string, isPublic bool) correlation.Session {
			return correlation.Session{Handle: pubkey, Close: func() {}}
		},
	}
	srv.Handler = func(ctx context.Context, clientPubKey string, msg rpcmsg.Message) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()

		result, _ := json.Marshal(map[string]string{"ok": "true"})
		resp := rpcmsg.Message{JSONRPC: rpcmsg.Version, ID: msg.ID, Result: result}
		if err := srv.Send(ctx, resp); err != nil {
			t.Errorf("srv.Send: %v", err)
		}
	}
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("srv.Start: %v", err)
	}
	defer srv.Stop(ctx)

	var clientReceived []rpcmsg.Message
	cl := &Client{
		Signer:       clientSigner,
		Relay:        bus.Handle(),
		ServerPubKey: serverPub,
		OnReceive: func(msg rpcmsg.Message) {
			mu.Lock()
			clientReceived = append(clientReceived, msg)
			mu.Unlock()
		},
	}
	if err := cl.Start(ctx); err != nil {
		t.Fatalf("cl.Start: %v", err)
	}
	defer cl.Stop(ctx)

	req := rpcmsg.Message{JSONRPC: rpcmsg.Version, ID: json.RawMessage(`42`), Method: "tools/call"}
	if err := cl.Send(ctx, req); err != nil {
		t.Fatalf("cl.Send: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(clientReceived)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("server received %d messages; want 1", len(received))
	}
	if received[0].Method != "tools/call" {
		t.Fatalf("server saw method %q", received[0].Method)
	}
	if len(clientReceived) != 1 {
		t.Fatalf("client received %d messages; want 1", len(clientReceived))
	}
	if string(clientReceived[0].ID) != "42" {
		t.Fatalf("client response id = %s; want 42", clientReceived[0].ID)
	}
}

func TestClientDuplicateInboundEventSuppressed(t *testing.T) {
	ctx := context.Background()
	serverSigner, _ := signing.GenerateLocalSigner()
	clientSigner, _ := signing.GenerateLocalSigner()
	serverPub, _ := serverSigner.GetPublicKey(ctx)

	var calls int
	cl := &Client{
		Signer:       clientSigner,
		Relay:        newSharedRelay().Handle(),
		ServerPubKey: serverPub,
		OnReceive: func(msg rpcmsg.Message) {
			calls++
		},
	}
	if err := cl.Start(ctx); err != nil {
		t.Fatalf("cl.Start: %v", err)
	}
	defer cl.Stop(ctx)

	tmpl := buildAppEventForTest(t, serverSigner, clientSigner, rpcmsg.Message{
		JSONRPC: rpcmsg.Version, Method: "notifications/message",
	})

	cl.processIncomingEvent(ctx, tmpl)
	cl.processIncomingEvent(ctx, tmpl)

	if calls != 1 {
		t.Fatalf("calls = %d; want 1 (the same notification event delivered twice must reach OnReceive only once)", calls)
	}
}
