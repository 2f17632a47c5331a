// Package payment implements the inbound server middleware that gates
// priced capabilities behind a payment handshake, and the tag assembly
// helpers servers use to advertise pricing.
package payment

import "context"

// CreatePaymentRequiredInput is what the middleware asks a Processor to
// turn into an invoice.
type CreatePaymentRequiredInput struct {
	Amount         string
	Description    string
	RequestEventID string
	ClientPubKey   string
}

// PaymentRequired is the invoice a Processor produces.
type PaymentRequired struct {
	Amount      string
	PayReq      string
	PMI         string
	Description string
	TTLSeconds  int
	Meta        map[string]interface{}
}

// VerifyPaymentInput is what the middleware asks a Processor to confirm.
type VerifyPaymentInput struct {
	PayReq         string
	RequestEventID string
	ClientPubKey   string
}

// VerifiedPayment is returned once a Processor confirms settlement.
type VerifiedPayment struct {
	Meta map[string]interface{}
}

// Processor is the external payment method a server wires in: devpay
// (internal/payment/devpay) is the one concrete implementation shipped
// here; operators can wire an x402, Lightning, or any other settlement
// backend behind the same interface.
type Processor interface {
	// PMI is this processor's payment method identifier, matched against a
	// client's advertised pmi tags.
	PMI() string
	CreatePaymentRequired(ctx context.Context, in CreatePaymentRequiredInput) (PaymentRequired, error)
	VerifyPayment(ctx context.Context, in VerifyPaymentInput) (VerifiedPayment, error)
}
