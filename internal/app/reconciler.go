package app

import (
	"context"
	"errors"
	"log"

	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeNoop      Outcome = "noop"
	OutcomeMiss      Outcome = "miss"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeError     Outcome = "error"
)

// SideEffects runs the downstream work for an order that just changed status.
type SideEffects interface {
	Trigger(ctx context.Context, order domain.Order)
}

// OutcomeRecorder receives one observation per handled event.
type OutcomeRecorder interface {
	ObserveOutcome(eventType string, outcome string)
}

type ReconcileResult struct {
	Outcome Outcome
	OrderID string
}

// Reconciler takes an authenticated event through resolution, transition and
// side-effect dispatch.
type Reconciler struct {
	repo     OrderRepository
	ledger   EventLedger
	resolver *Resolver
	engine   *TransitionEngine
	effects  SideEffects
	clock    clock.Clock
	logger   *log.Logger
	recorder OutcomeRecorder
}

type ReconcilerOption func(*Reconciler)

func WithOutcomeRecorder(rec OutcomeRecorder) ReconcilerOption {
	return func(r *Reconciler) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

func WithReconcilerLogger(logger *log.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewReconciler(repo OrderRepository, ledger EventLedger, effects SideEffects, clk clock.Clock, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		repo:     repo,
		ledger:   ledger,
		effects:  effects,
		clock:    clk,
		logger:   log.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resolver = NewResolver(repo, r.logger)
	r.engine = NewTransitionEngine(repo, clk, r.logger)
	return r
}

// Handle never fails for resolution misses or terminal orders; those are
// reported through the outcome. Errors are store failures, after which the
// event claim is released so a redelivery can retry. Side effects start only
// once the transition is committed.
func (r *Reconciler) Handle(ctx context.Context, env domain.Envelope, ev domain.Event) (ReconcileResult, error) {
	var res ReconcileResult
	var changed *domain.Order

	err := r.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		res, changed, err = r.handle(txCtx, env, ev)
		return err
	})
	if err != nil {
		r.release(env)
		res.Outcome = OutcomeError
		changed = nil
	}
	r.recorder.ObserveOutcome(env.Type, string(res.Outcome))

	if changed != nil && r.effects != nil {
		r.effects.Trigger(ctx, *changed)
	}
	return res, err
}

func (r *Reconciler) handle(ctx context.Context, env domain.Envelope, ev domain.Event) (ReconcileResult, *domain.Order, error) {
	if env.ID != "" && r.ledger != nil {
		first, err := r.ledger.ClaimEvent(ctx, env.ID, env.Type, r.clock.Now())
		if err != nil {
			return ReconcileResult{}, nil, err
		}
		if !first {
			r.logger.Printf("duplicate event ignored event_id=%s type=%s", env.ID, env.Type)
			return ReconcileResult{Outcome: OutcomeDuplicate}, nil, nil
		}
	}

	res, changed, err := r.apply(ctx, env, ev)
	if err != nil {
		return res, nil, err
	}

	if env.ID != "" && r.ledger != nil {
		if err := r.ledger.CompleteEvent(ctx, env.ID, res.OrderID, string(res.Outcome)); err != nil {
			return res, nil, err
		}
	}
	return res, changed, nil
}

func (r *Reconciler) apply(ctx context.Context, env domain.Envelope, ev domain.Event) (ReconcileResult, *domain.Order, error) {
	resolution, err := r.resolver.Resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			r.logger.Printf("no order matched event_id=%s type=%s", env.ID, env.Type)
			return ReconcileResult{Outcome: OutcomeMiss}, nil, nil
		}
		return ReconcileResult{}, nil, err
	}

	in := transitionFor(ev)
	in.OrderID = resolution.Order.ID
	r.logger.Printf("order resolved event_id=%s order_id=%s via=%s", env.ID, in.OrderID, resolution.Via)

	tr, err := r.engine.Transition(ctx, in)
	if err != nil {
		return ReconcileResult{OrderID: in.OrderID}, nil, err
	}
	if !tr.Applied {
		return ReconcileResult{Outcome: OutcomeNoop, OrderID: tr.Order.ID}, nil, nil
	}

	outcome := OutcomeConfirmed
	if tr.Order.Status == domain.OrderStatusCancelled {
		outcome = OutcomeCancelled
		r.logger.Printf("order cancelled order_id=%s payment_intent=%s reason=%q", tr.Order.ID, tr.Order.PaymentIntentID, in.Reason)
	}
	return ReconcileResult{Outcome: outcome, OrderID: tr.Order.ID}, &tr.Order, nil
}

func (r *Reconciler) release(env domain.Envelope) {
	if env.ID == "" || r.ledger == nil {
		return
	}
	// The request context may already be gone; the release must still land.
	if err := r.ledger.ReleaseEvent(context.Background(), env.ID); err != nil {
		r.logger.Printf("WARN: release event claim event_id=%s err=%v", env.ID, err)
	}
}

// transitionFor maps each event kind to its target status and references.
func transitionFor(ev domain.Event) TransitionInput {
	v := &transitionVisitor{}
	_ = ev.Accept(v)
	return v.in
}

type transitionVisitor struct {
	in TransitionInput
}

func (v *transitionVisitor) VisitCheckoutCompleted(e domain.CheckoutCompleted) error {
	v.in = TransitionInput{
		Target:          domain.OrderStatusConfirmed,
		PaymentIntentID: e.PaymentIntentID,
		SessionID:       e.SessionID,
	}
	return nil
}

func (v *transitionVisitor) VisitPaymentSucceeded(e domain.PaymentSucceeded) error {
	v.in = TransitionInput{Target: domain.OrderStatusConfirmed, PaymentIntentID: e.PaymentIntentID}
	return nil
}

func (v *transitionVisitor) VisitPaymentFailed(e domain.PaymentFailed) error {
	v.in = TransitionInput{Target: domain.OrderStatusCancelled, PaymentIntentID: e.PaymentIntentID, Reason: e.FailureMessage}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(string, string) {}
