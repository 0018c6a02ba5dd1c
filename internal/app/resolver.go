package app

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

const (
	ResolvedByClientReference = "client_reference"
	ResolvedByEmail           = "email"
	ResolvedByPaymentIntent   = "payment_intent"
)

// Resolution is the order an event refers to and the lookup that found it.
type Resolution struct {
	Order domain.Order
	Via   string
}

// Resolver maps a payment event to a single order.
type Resolver struct {
	repo   OrderFinder
	logger *log.Logger
}

func NewResolver(repo OrderFinder, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns domain.ErrOrderNotFound when no lookup path matches.
func (r *Resolver) Resolve(ctx context.Context, ev domain.Event) (Resolution, error) {
	v := &resolveVisitor{ctx: ctx, r: r}
	if err := ev.Accept(v); err != nil {
		return Resolution{}, err
	}
	return v.res, nil
}

type resolveVisitor struct {
	ctx context.Context
	r   *Resolver
	res Resolution
}

func (v *resolveVisitor) VisitCheckoutCompleted(e domain.CheckoutCompleted) error {
	if e.ClientReference != "" {
		order, err := v.r.repo.GetOrderByID(v.ctx, e.ClientReference)
		switch {
		case err == nil:
			v.res = Resolution{Order: order, Via: ResolvedByClientReference}
			return nil
		case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInvalidID):
			// A reference we never issued must not be matched to someone's
			// order by email.
			v.r.logger.Printf("WARN: client reference not found session_id=%s reference=%s", e.SessionID, e.ClientReference)
			return domain.ErrOrderNotFound
		default:
			return err
		}
	}

	if strings.TrimSpace(e.CustomerEmail) == "" {
		return domain.ErrOrderNotFound
	}
	order, err := v.r.mostRecentPendingByEmail(v.ctx, e.CustomerEmail)
	if err != nil {
		return err
	}
	v.res = Resolution{Order: order, Via: ResolvedByEmail}
	return nil
}

func (v *resolveVisitor) VisitPaymentSucceeded(e domain.PaymentSucceeded) error {
	return v.byPaymentIntent(e.PaymentIntentID)
}

func (v *resolveVisitor) VisitPaymentFailed(e domain.PaymentFailed) error {
	return v.byPaymentIntent(e.PaymentIntentID)
}

func (v *resolveVisitor) byPaymentIntent(id string) error {
	if id == "" {
		return domain.ErrOrderNotFound
	}
	order, err := v.r.repo.GetPendingOrderByPaymentIntent(v.ctx, id)
	if err != nil {
		return err
	}
	v.res = Resolution{Order: order, Via: ResolvedByPaymentIntent}
	return nil
}

// mostRecentPendingByEmail is a heuristic: with several pending orders for the
// same address it picks the newest, which is deterministic but can be the
// wrong one.
func (r *Resolver) mostRecentPendingByEmail(ctx context.Context, email string) (domain.Order, error) {
	orders, err := r.repo.ListOrdersByEmail(ctx, email)
	if err != nil {
		return domain.Order{}, err
	}

	pending := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == domain.OrderStatusPending {
			pending = append(pending, o)
		}
	}
	if len(pending) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.After(pending[j].CreatedAt)
		}
		return pending[i].ID > pending[j].ID
	})
	if len(pending) > 1 {
		r.logger.Printf("WARN: %d pending orders for email=%s, picking most recent order_id=%s", len(pending), email, pending[0].ID)
	}
	return pending[0], nil
}
