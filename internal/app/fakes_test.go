package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	events map[string]string

	updateErr error
	claimErr  error
	released  []string
}

func newFakeOrderRepo(orders ...domain.Order) *fakeOrderRepo {
	f := &fakeOrderRepo{
		orders: make(map[string]domain.Order),
		events: make(map[string]string),
	}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, order domain.Order) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.ID] = order
	return order.ID, nil
}

func (f *fakeOrderRepo) GetOrderByID(_ context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) ListOrdersByEmail(_ context.Context, email string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if strings.EqualFold(o.CustomerEmail, email) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrderRepo) GetPendingOrderByPaymentIntent(_ context.Context, ref string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.PaymentIntentID == ref && o.Status == domain.OrderStatusPending {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (f *fakeOrderRepo) UpdateOrderStatus(_ context.Context, upd domain.StatusUpdate) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Order{}, f.updateErr
	}
	o, ok := f.orders[upd.OrderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return domain.Order{}, domain.ErrInvalidTransition
	}
	o.Status = upd.Status
	if upd.PaymentIntentID != "" {
		o.PaymentIntentID = upd.PaymentIntentID
	}
	if upd.SessionID != "" {
		o.CheckoutSessionID = upd.SessionID
	}
	o.UpdatedAt = upd.UpdatedAt
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeOrderRepo) GetConfirmedOrderBySession(_ context.Context, sessionID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.CheckoutSessionID == sessionID && o.Status == domain.OrderStatusConfirmed {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (f *fakeOrderRepo) OrderStats(_ context.Context) (domain.OrderStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st domain.OrderStats
	for _, o := range f.orders {
		st.Total++
		switch o.Status {
		case domain.OrderStatusPending:
			st.Pending++
		case domain.OrderStatusConfirmed:
			st.Confirmed++
			st.Revenue = st.Revenue.Add(o.Total())
		case domain.OrderStatusCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

func (f *fakeOrderRepo) ClaimEvent(_ context.Context, eventID, _ string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if _, ok := f.events[eventID]; ok {
		return false, nil
	}
	f.events[eventID] = ""
	return true, nil
}

func (f *fakeOrderRepo) CompleteEvent(_ context.Context, eventID, _ string, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[eventID] = outcome
	return nil
}

func (f *fakeOrderRepo) ReleaseEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, eventID)
	f.released = append(f.released, eventID)
	return nil
}

type recordingEffects struct {
	mu        sync.Mutex
	triggered []domain.Order
}

func (r *recordingEffects) Trigger(_ context.Context, order domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggered = append(r.triggered, order)
}

func (r *recordingEffects) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggered)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (c *countingRecorder) ObserveOutcome(_ string, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}
