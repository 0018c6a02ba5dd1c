package domain

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrMissingRequired     = errors.New("missing required field")
	ErrDuplicateEvent      = errors.New("event already processed")
	ErrUnhandledEventType  = errors.New("unhandled event type")
	ErrInvalidPayload      = errors.New("invalid event payload")
	ErrMissingSignature    = errors.New("missing signature header")
	ErrMalformedSignature  = errors.New("malformed signature header")
	ErrSignatureMismatch   = errors.New("signature mismatch")
	ErrSignatureExpired    = errors.New("signature timestamp outside tolerance")
	ErrSecretNotConfigured = errors.New("webhook signing secret not configured")
)
