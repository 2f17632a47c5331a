package payment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nostrmcp/bridge/internal/bridgeerr"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
	"github.com/nostrmcp/bridge/internal/transport"
)

type fakeProcessor struct {
	pmi         string
	verifyDelay time.Duration
	verifyErr   error
}

func (p *fakeProcessor) PMI() string { return p.pmi }

func (p *fakeProcessor) CreatePaymentRequired(ctx context.Context, in CreatePaymentRequiredInput) (PaymentRequired, error) {
	return PaymentRequired{Amount: in.Amount, PayReq: "invoice-" + in.RequestEventID, PMI: p.pmi, TTLSeconds: 1}, nil
}

func (p *fakeProcessor) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (VerifiedPayment, error) {
	if p.verifyDelay > 0 {
		select {
		case <-time.After(p.verifyDelay):
		case <-ctx.Done():
			return VerifiedPayment{}, ctx.Err()
		}
	}
	if p.verifyErr != nil {
		return VerifiedPayment{}, p.verifyErr
	}
	return VerifiedPayment{Meta: map[string]interface{}{"txid": "abc"}}, nil
}

type fakeSender struct {
	mu    sync.Mutex
	calls []rpcmsg.Message
}

func (s *fakeSender) SendCorrelated(ctx context.Context, requestEventID string, msg rpcmsg.Message) error {
	s.mu.Lock()
	s.calls = append(s.calls, msg)
	s.mu.Unlock()
	return nil
}

func toolCallRequest(id, name string) rpcmsg.Message {
	params, _ := json.Marshal(map[string]interface{}{"name": name})
	return rpcmsg.Message{JSONRPC: rpcmsg.Version, ID: json.RawMessage(id), Method: rpcmsg.MethodToolsCall, Params: params}
}

func TestMiddlewareForwardsUnpricedRequest(t *testing.T) {
	m := New(Config{PricedCapabilities: []PricedCapability{{Method: rpcmsg.MethodToolsCall, Name: "priced-tool", Amount: "10"}}})

	forwarded := false
	err := m.Handle(context.Background(), transport.ClientContext{ClientPubKey: "alice"}, toolCallRequest(`"1"`, "free-tool"), func(ctx context.Context, msg rpcmsg.Message) error {
		forwarded = true
		return nil
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !forwarded {
		t.Fatal("expected unpriced request to be forwarded directly")
	}
}

func TestMiddlewareSuccessfulPaymentFlow(t *testing.T) {
	sender := &fakeSender{}
	proc := &fakeProcessor{pmi: "dev"}
	m := New(Config{
		Processors:         []Processor{proc},
		PricedCapabilities: []PricedCapability{{Method: rpcmsg.MethodToolsCall, Name: "priced-tool", Amount: "10"}},
		Sender:             sender,
	})

	forwarded := false
	err := m.Handle(context.Background(), transport.ClientContext{ClientPubKey: "alice"}, toolCallRequest(`"1"`, "priced-tool"), func(ctx context.Context, msg rpcmsg.Message) error {
		forwarded = true
		return nil
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !forwarded {
		t.Fatal("expected request forwarded after successful payment")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.calls) != 2 {
		t.Fatalf("sender got %d notifications; want 2 (required, accepted)", len(sender.calls))
	}
	if sender.calls[0].Method != rpcmsg.MethodNotificationPaymentRequired {
		t.Fatalf("first notification = %q", sender.calls[0].Method)
	}
	if sender.calls[1].Method != rpcmsg.MethodNotificationPaymentAccepted {
		t.Fatalf("second notification = %q", sender.calls[1].Method)
	}
}

func TestMiddlewareRejectsViaResolvePrice(t *testing.T) {
	sender := &fakeSender{}
	proc := &fakeProcessor{pmi: "dev"}
	m := New(Config{
		Processors:         []Processor{proc},
		PricedCapabilities: []PricedCapability{{Method: rpcmsg.MethodToolsCall, Name: "priced-tool", Amount: "10"}},
		Sender:             sender,
		ResolvePrice: func(ctx context.Context, in ResolvePriceInput) ResolvePriceResult {
			return ResolvePriceResult{Reject: true, RejectMsg: "not available"}
		},
	})

	forwarded := false
	err := m.Handle(context.Background(), transport.ClientContext{ClientPubKey: "alice"}, toolCallRequest(`"1"`, "priced-tool"), func(ctx context.Context, msg rpcmsg.Message) error {
		forwarded = true
		return nil
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if forwarded {
		t.Fatal("rejected request must not forward")
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.calls) != 1 || sender.calls[0].Method != rpcmsg.MethodNotificationPaymentRejected {
		t.Fatalf("calls = %+v", sender.calls)
	}
}

func TestMiddlewareVerifyTimeoutSurfacesTypedError(t *testing.T) {
	sender := &fakeSender{}
	proc := &fakeProcessor{pmi: "dev", verifyDelay: 50 * time.Millisecond}
	m := New(Config{
		Processors:         []Processor{proc},
		PricedCapabilities: []PricedCapability{{Method: rpcmsg.MethodToolsCall, Name: "priced-tool", Amount: "10"}},
		Sender:             sender,
		PaymentTTL:         10 * time.Millisecond,
	})

	err := m.Handle(context.Background(), transport.ClientContext{ClientPubKey: "alice"}, toolCallRequest(`"1"`, "priced-tool"), func(ctx context.Context, msg rpcmsg.Message) error {
		t.Fatal("must not forward on timeout")
		return nil
	})
	if !bridgeerr.Is(err, bridgeerr.CodePaymentTimeout) {
		t.Fatalf("err = %v; want CodePaymentTimeout", err)
	}
}

func TestMiddlewareDuplicateRequestPiggybacks(t *testing.T) {
	sender := &fakeSender{}
	release := make(chan struct{})
	proc := &fakeProcessor{pmi: "dev"}
	calledVerify := make(chan struct{}, 1)
	blockingProc := &blockingProcessor{fakeProcessor: proc, release: release, called: calledVerify}

	m := New(Config{
		Processors:         []Processor{blockingProc},
		PricedCapabilities: []PricedCapability{{Method: rpcmsg.MethodToolsCall, Name: "priced-tool", Amount: "10"}},
		Sender:             sender,
	})

	req := toolCallRequest(`"same-id"`, "priced-tool")

	var forwardCount int
	var mu sync.Mutex
	forward := func(ctx context.Context, msg rpcmsg.Message) error {
		mu.Lock()
		forwardCount++
		mu.Unlock()
		return nil
	}

	done := make(chan struct{})
	go func() {
		m.Handle(context.Background(), transport.ClientContext{ClientPubKey: "alice"}, req, forward)
		close(done)
	}()

	<-calledVerify // first call has entered VerifyPayment and is blocked

	dupDone := make(chan struct{})
	go func() {
		m.Handle(context.Background(), transport.ClientContext{ClientPubKey: "alice"}, req, forward)
		close(dupDone)
	}()

	close(release)
	<-done
	<-dupDone

	mu.Lock()
	defer mu.Unlock()
	if forwardCount != 1 {
		t.Fatalf("forwardCount = %d; want 1 (duplicate must piggyback, not re-run the handler)", forwardCount)
	}
}

type blockingProcessor struct {
	*fakeProcessor
	release chan struct{}
	called  chan struct{}
}

func (p *blockingProcessor) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (VerifiedPayment, error) {
	select {
	case p.called <- struct{}{}:
	default:
	}
	<-p.release
	return p.fakeProcessor.VerifyPayment(ctx, in)
}
