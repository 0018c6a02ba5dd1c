package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition is true only for pending -> confirmed and pending -> cancelled.
func CanTransition(from, to OrderStatus) bool {
	if from != OrderStatusPending {
		return false
	}
	return to == OrderStatusConfirmed || to == OrderStatusCancelled
}

// Attribution holds the campaign parameters captured when the order was created.
type Attribution struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

// Order is a single purchase attempt, tracked from checkout intent to payment outcome.
type Order struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int

	Price          decimal.Decimal
	DiscountAmount decimal.Decimal
	VoucherCode    string

	CustomerEmail       string
	CustomerPhone       string
	BusinessName        string
	BusinessPostcode    string
	BusinessCountry     string
	BusinessDirectoryID string

	// DeviceColors is the stand configuration chosen at checkout. It is stored and
	// forwarded as-is.
	DeviceColors json.RawMessage

	Attribution Attribution

	PaymentIntentID   string
	CheckoutSessionID string

	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail is the stored and matched form of a customer address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Total is the amount actually charged: price minus discount, floored at zero.
func (o Order) Total() decimal.Decimal {
	total := o.Price.Sub(o.DiscountAmount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// OrderStats aggregates order counts per status and revenue from confirmed orders.
type OrderStats struct {
	Total     int
	Pending   int
	Confirmed int
	Cancelled int
	Revenue   decimal.Decimal
}

// StatusUpdate describes a transition out of pending. Empty payment references
// leave the stored value untouched.
type StatusUpdate struct {
	OrderID         string
	Status          OrderStatus
	PaymentIntentID string
	SessionID       string
	UpdatedAt       time.Time
}
