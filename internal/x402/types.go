package x402

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

const (
	CodePaymentRequired               = "PAYMENT_REQUIRED"
	CodePaymentInvalid                = "PAYMENT_INVALID"
	CodePaymentFacilitatorUnavailable = "PAYMENT_FACILITATOR_UNAVAILABLE"
	CodePaymentSettlementFailed       = "PAYMENT_SETTLEMENT_FAILED"
	CodePaymentSettlementUnavailable  = "PAYMENT_SETTLEMENT_UNAVAILABLE"
	CodePaymentConfigInvalid          = "PAYMENT_CONFIG_INVALID"

	// X402Version is the facilitator protocol version stamped into every
	// invoice payload, so a facilitator speaking a newer wire format can
	// still recognize what devpay.Processor sent it.
	X402Version = 2
)

// Requirement is what devpay.Processor.CreatePaymentRequired fills in from
// its Config plus the per-call amount, and what VerifyPayment later hands
// back to the facilitator's settle endpoint.
type Requirement struct {
	Scheme   string
	Network  string
	Amount   string
	Asset    string
	PayTo    string
	Resource string
}

// RequiredPayload is the invoice devpay.Processor.CreatePaymentRequired
// serializes into payment.PaymentRequired.PayReq — the value the server
// relays to the client in a notifications/payment_required event.
type RequiredPayload struct {
	X402Version int           `json:"x402Version"`
	Accept      []AcceptEntry `json:"accepts"`
}

// AcceptEntry describes one acceptable way to pay: scheme, chain, amount,
// asset, and payee, matched against whatever the client's wallet can settle.
type AcceptEntry struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Amount            string `json:"amount"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	Resource          string `json:"resource"`
}

const allowedSchemesText = "exact, upto"

func (r Requirement) Validate() error {
	// normalize and check scheme value
	scheme := strings.ToLower(strings.TrimSpace(r.Scheme))
	if scheme == "" {
		return fmt.Errorf("x402 scheme is required")
	}
	switch scheme {
	case "exact", "upto":
	default:
		return fmt.Errorf("x402 scheme must be one of: %s", allowedSchemesText)
	}
	if strings.TrimSpace(r.Network) == "" {
		return fmt.Errorf("x402 network is required")
	}
	if !IsCAIP2Network(r.Network) {
		return fmt.Errorf("x402 network must be CAIP-2")
	}
	// amount must be a non-empty positive integer.
	amt := strings.TrimSpace(r.Amount)
	if amt == "" {
		return fmt.Errorf("x402 amount is required")
	}
	value := new(big.Int)
	if _, ok := value.SetString(amt, 10); !ok || value.Sign() <= 0 {
		return fmt.Errorf("x402 amount must be a positive integer")
	}
	if strings.TrimSpace(r.Asset) == "" {
		return fmt.Errorf("x402 asset is required")
	}
	if strings.TrimSpace(r.PayTo) == "" {
		return fmt.Errorf("x402 pay_to is required")
	}
	if strings.TrimSpace(r.Resource) == "" {
		return fmt.Errorf("x402 resource is required")
	}
	return nil
}

// BuildRequiredPayload turns req into the invoice devpay.Processor hands
// back to payment.Middleware as payment.PaymentRequired.PayReq.
func BuildRequiredPayload(req Requirement) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	p := RequiredPayload{
		X402Version: X402Version,
		Accept: []AcceptEntry{
			{
				Scheme:            strings.ToLower(strings.TrimSpace(req.Scheme)),
				Network:           strings.TrimSpace(req.Network),
				Amount:            strings.TrimSpace(req.Amount),
				MaxAmountRequired: strings.TrimSpace(req.Amount),
				Asset:             strings.TrimSpace(req.Asset),
				PayTo:             strings.TrimSpace(req.PayTo),
				Resource:          strings.TrimSpace(req.Resource),
			},
		},
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// IsCAIP2Network validates a conservative CAIP-2 identifier shape:
// <namespace>:<reference>
func IsCAIP2Network(network string) bool {
	network = strings.TrimSpace(network)
	parts := strings.Split(network, ":")
	if len(parts) != 2 {
		return false
	}

	ns := parts[0]
	ref := parts[1]
	if len(ns) == 0 || len(ns) > 32 || len(ref) == 0 || len(ref) > 128 {
		return false
	}

	for _, r := range ns {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	for _, r := range ref {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}

type FacilitatorError struct {
	Operation  string
	StatusCode int
	Retryable  bool
	Code       string
	Message    string
	Body       string
	Cause      error
}

func (e *FacilitatorError) Error() string {
	if e == nil {
		return "<nil FacilitatorError>"
	}
	if e.Code == "" && e.Message == "" {
		return "facilitator request failed"
	}
	if e.Code == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *FacilitatorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
