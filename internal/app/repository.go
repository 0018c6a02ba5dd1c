package app

import (
	"context"
	"time"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

// OrderFinder is the read side of the order store used during resolution.
type OrderFinder interface {
	GetOrderByID(ctx context.Context, id string) (domain.Order, error)
	// ListOrdersByEmail returns every order for email, newest first.
	ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error)
	GetPendingOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (domain.Order, error)
}

// OrderRepository is the full order store contract.
type OrderRepository interface {
	OrderFinder
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.Order) (string, error)
	// UpdateOrderStatus moves a pending order to upd.Status. It returns
	// domain.ErrInvalidTransition when the order is already terminal and
	// domain.ErrOrderNotFound when it does not exist.
	UpdateOrderStatus(ctx context.Context, upd domain.StatusUpdate) (domain.Order, error)
	GetConfirmedOrderBySession(ctx context.Context, sessionID string) (domain.Order, error)
	OrderStats(ctx context.Context) (domain.OrderStats, error)
}

// EventLedger remembers which provider event ids have been processed.
type EventLedger interface {
	// ClaimEvent records eventID and reports false if it was already recorded.
	ClaimEvent(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error)
	CompleteEvent(ctx context.Context, eventID, orderID, outcome string) error
	// ReleaseEvent forgets a claim so a redelivery is processed again.
	ReleaseEvent(ctx context.Context, eventID string) error
}
