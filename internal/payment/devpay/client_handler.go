package devpay

import (
	"context"

	"github.com/nostrmcp/bridge/internal/payment"
)

// ClientHandler is the client-side half of the x402 demo flow
// (payment.Handler): a real wallet integration would submit the payment
// here; this dev/demo handler only signals that an attempt was made, since
// settlement is confirmed independently by the server's Processor polling
// the facilitator.
type ClientHandler struct{}

// NewClientHandler constructs a ClientHandler.
func NewClientHandler() *ClientHandler { return &ClientHandler{} }

// PMI implements payment.Handler.
func (h *ClientHandler) PMI() string { return "x402" }

// Handle implements payment.Handler.
func (h *ClientHandler) Handle(ctx context.Context, in payment.HandleInput) error {
	return nil
}
