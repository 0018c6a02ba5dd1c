package domain

import "time"

// Event is one of the payment-provider notifications the service reacts to.
// The set is closed: every kind is dispatched through EventVisitor, so adding
// a kind means adding a visitor method and every visitor stops compiling until
// it handles it.
type Event interface {
	Accept(v EventVisitor) error
	Kind() string
}

type EventVisitor interface {
	VisitCheckoutCompleted(e CheckoutCompleted) error
	VisitPaymentSucceeded(e PaymentSucceeded) error
	VisitPaymentFailed(e PaymentFailed) error
}

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// Envelope carries the provider metadata shared by all events.
type Envelope struct {
	ID      string
	Type    string
	Created time.Time
}

// CheckoutCompleted is emitted when a hosted checkout session finishes.
type CheckoutCompleted struct {
	SessionID       string
	ClientReference string
	CustomerEmail   string
	PaymentIntentID string
}

func (e CheckoutCompleted) Accept(v EventVisitor) error { return v.VisitCheckoutCompleted(e) }
func (CheckoutCompleted) Kind() string                  { return EventCheckoutCompleted }

type PaymentSucceeded struct {
	PaymentIntentID string
}

func (e PaymentSucceeded) Accept(v EventVisitor) error { return v.VisitPaymentSucceeded(e) }
func (PaymentSucceeded) Kind() string                  { return EventPaymentSucceeded }

type PaymentFailed struct {
	PaymentIntentID string
	FailureMessage  string
}

func (e PaymentFailed) Accept(v EventVisitor) error { return v.VisitPaymentFailed(e) }
func (PaymentFailed) Kind() string                  { return EventPaymentFailed }
