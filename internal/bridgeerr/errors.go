// Package bridgeerr holds the canonical error taxonomy shared by both
// transports and the payment middleware: a small struct with a stable
// Code, a human Message, and Unwrap support.
package bridgeerr

import "errors"

// Canonical error codes shared across the transports and payment middleware.
const (
	CodeInvalidRelayURL           = "INVALID_RELAY_URL"
	CodePublishFailed             = "PUBLISH_FAILED"
	CodeEncryptionRequired        = "ENCRYPTION_REQUIRED"
	CodeSchemaInvalid             = "SCHEMA_INVALID"
	CodeUnknownCorrelation        = "UNKNOWN_CORRELATION"
	CodePendingEvicted            = "PENDING_EVICTED"
	CodePaymentTimeout            = "PAYMENT_TIMEOUT"
	CodePaymentRejected           = "PAYMENT_REJECTED"
	CodeDuplicateRequest          = "DUPLICATE_REQUEST"
)

// TransportError is the error type returned across package boundaries in
// this module whenever a caller needs to act on the failure kind rather
// than just log it.
type TransportError struct {
	Code    string
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil TransportError>"
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New constructs a TransportError with the given code and message.
func New(code, message string) *TransportError {
	return &TransportError{Code: code, Message: message}
}

// Wrap constructs a TransportError that wraps cause.
func Wrap(code, message string, cause error) *TransportError {
	return &TransportError{Code: code, Message: message, Cause: cause}
}

// Is reports whether err is a *TransportError with the given code.
func Is(err error, code string) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Code == code
}
