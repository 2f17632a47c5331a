// Package devpay is a demo payment.Processor backed by an x402-style HTTP
// facilitator (internal/x402), generalized from the header-challenge flow
// into the event-network payment.Processor shape: an invoice is created
// once, then VerifyPayment polls the facilitator's settle endpoint until it
// reports success, the caller's context expires, or the facilitator returns
// a non-retryable error.
package devpay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nostrmcp/bridge/internal/payment"
	"github.com/nostrmcp/bridge/internal/x402"
)

const defaultPollInterval = 500 * time.Millisecond
const defaultTTLSeconds = 300

// Config configures a Processor. Network, Asset, and PayTo describe the
// chain/asset/destination this instance settles against; Scheme defaults to
// "exact" (x402's fixed-amount scheme).
type Config struct {
	FacilitatorURL string
	BearerToken    string
	HTTPClient     *http.Client
	Network        string
	Asset          string
	PayTo          string
	Scheme         string
	PollInterval   time.Duration
	TTLSeconds     int
}

// Processor implements payment.Processor over an x402 facilitator.
type Processor struct {
	cfg    Config
	client *x402.HTTPClient

	mu      sync.Mutex
	pending map[string]x402.Requirement
}

// New constructs a Processor from cfg, applying documented defaults.
func New(cfg Config) *Processor {
	if cfg.Scheme == "" {
		cfg.Scheme = "exact"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = defaultTTLSeconds
	}
	return &Processor{
		cfg:     cfg,
		client:  x402.NewHTTPClient(cfg.FacilitatorURL, cfg.BearerToken, cfg.HTTPClient),
		pending: make(map[string]x402.Requirement),
	}
}

// PMI implements payment.Processor.
func (p *Processor) PMI() string { return "x402" }

// CreatePaymentRequired implements payment.Processor.
func (p *Processor) CreatePaymentRequired(ctx context.Context, in payment.CreatePaymentRequiredInput) (payment.PaymentRequired, error) {
	req := x402.Requirement{
		Scheme:   p.cfg.Scheme,
		Network:  p.cfg.Network,
		Amount:   in.Amount,
		Asset:    p.cfg.Asset,
		PayTo:    p.cfg.PayTo,
		Resource: in.RequestEventID,
	}
	if err := req.Validate(); err != nil {
		return payment.PaymentRequired{}, fmt.Errorf("devpay: invalid requirement: %w", err)
	}
	payReq, err := x402.BuildRequiredPayload(req)
	if err != nil {
		return payment.PaymentRequired{}, fmt.Errorf("devpay: build challenge: %w", err)
	}

	p.mu.Lock()
	p.pending[in.RequestEventID] = req
	p.mu.Unlock()

	return payment.PaymentRequired{
		Amount:      in.Amount,
		PayReq:      payReq,
		PMI:         p.PMI(),
		Description: in.Description,
		TTLSeconds:  p.cfg.TTLSeconds,
	}, nil
}

// VerifyPayment implements payment.Processor. Resolution implies
// settlement: it polls the facilitator's settle endpoint until it succeeds,
// a non-retryable FacilitatorError is returned, or ctx is done.
func (p *Processor) VerifyPayment(ctx context.Context, in payment.VerifyPaymentInput) (payment.VerifiedPayment, error) {
	p.mu.Lock()
	req, ok := p.pending[in.RequestEventID]
	p.mu.Unlock()
	if !ok {
		return payment.VerifiedPayment{}, fmt.Errorf("devpay: no pending requirement for request %s", in.RequestEventID)
	}
	defer func() {
		p.mu.Lock()
		delete(p.pending, in.RequestEventID)
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		settled, err := p.client.Settle(ctx, in.PayReq, req)
		if err == nil {
			return payment.VerifiedPayment{Meta: map[string]interface{}{"facilitator": settled}}, nil
		}

		var facErr *x402.FacilitatorError
		if errors.As(err, &facErr) && !facErr.Retryable {
			return payment.VerifiedPayment{}, err
		}

		select {
		case <-ctx.Done():
			return payment.VerifiedPayment{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
