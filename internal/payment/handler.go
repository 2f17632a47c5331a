package payment

import "github.com/nostrmcp/bridge/internal/transport"

// Handler is the client-side payment handler contract: transport.Client
// dispatches notifications/payment_required to whichever
// Handler's PMI matches. It's an alias rather than a new interface so a
// concrete processor (internal/payment/devpay) can satisfy both the
// server-side Processor and the client-side Handler without an adapter.
type Handler = transport.PaymentHandler

// HandleInput is the payload a Handler's Handle receives.
type HandleInput = transport.PaymentHandlerInput
