package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

type TransitionInput struct {
	OrderID         string
	Target          domain.OrderStatus
	PaymentIntentID string
	SessionID       string
	// Reason is the provider's explanation for a failed payment, if any.
	Reason string
}

// TransitionResult holds the order after the attempt. Applied is false when
// the order was already terminal and nothing changed.
type TransitionResult struct {
	Order   domain.Order
	Applied bool
}

// TransitionEngine applies one-way status changes to orders.
type TransitionEngine struct {
	repo   OrderRepository
	clock  clock.Clock
	logger *log.Logger
}

func NewTransitionEngine(repo OrderRepository, clk clock.Clock, logger *log.Logger) *TransitionEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &TransitionEngine{repo: repo, clock: clk, logger: logger}
}

func (e *TransitionEngine) Transition(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	if !domain.CanTransition(domain.OrderStatusPending, in.Target) {
		return TransitionResult{}, fmt.Errorf("%w: target %q", domain.ErrInvalidTransition, in.Target)
	}

	order, err := e.repo.UpdateOrderStatus(ctx, domain.StatusUpdate{
		OrderID:         in.OrderID,
		Status:          in.Target,
		PaymentIntentID: in.PaymentIntentID,
		SessionID:       in.SessionID,
		UpdatedAt:       e.clock.Now(),
	})
	if err == nil {
		e.logger.Printf("order transitioned order_id=%s status=%s", order.ID, order.Status)
		return TransitionResult{Order: order, Applied: true}, nil
	}
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return TransitionResult{}, err
	}

	current, err := e.repo.GetOrderByID(ctx, in.OrderID)
	if err != nil {
		return TransitionResult{}, err
	}
	e.logger.Printf("transition no-op order_id=%s status=%s target=%s", current.ID, current.Status, in.Target)
	return TransitionResult{Order: current, Applied: false}, nil
}
