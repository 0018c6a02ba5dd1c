// Package effects runs the downstream work that follows an order status
// change. Actions are independent: one failing never stops or fails another,
// and nothing here can change the order itself.
package effects

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

const DefaultActionTimeout = 45 * time.Second

// Action is one side effect for an order.
type Action interface {
	Name() string
	Run(ctx context.Context, order domain.Order) error
}

// ActionFunc adapts a function to Action.
func ActionFunc(name string, fn func(ctx context.Context, order domain.Order) error) Action {
	return funcAction{name: name, fn: fn}
}

type funcAction struct {
	name string
	fn   func(ctx context.Context, order domain.Order) error
}

func (a funcAction) Name() string { return a.name }

func (a funcAction) Run(ctx context.Context, order domain.Order) error { return a.fn(ctx, order) }

// Observer receives one observation per action run.
type Observer interface {
	ObserveSideEffect(action string, d time.Duration, err error)
}

type Result struct {
	Action   string
	Err      error
	Duration time.Duration
}

type Report struct {
	OrderID string
	Results []Result
}

// Failed lists the names of actions that returned an error.
func (r Report) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Action)
		}
	}
	return out
}

type Dispatcher struct {
	confirmed []Action
	cancelled []Action
	timeout   time.Duration
	async     bool
	logger    *log.Logger
	observer  Observer

	wg sync.WaitGroup
}

type Option func(*Dispatcher)

// OnConfirmed registers actions for pending → confirmed.
func OnConfirmed(actions ...Action) Option {
	return func(d *Dispatcher) { d.confirmed = append(d.confirmed, actions...) }
}

// OnCancelled registers actions for pending → cancelled.
func OnCancelled(actions ...Action) Option {
	return func(d *Dispatcher) { d.cancelled = append(d.cancelled, actions...) }
}

func WithActionTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithAsync makes Trigger return immediately; use Drain on shutdown.
func WithAsync() Option {
	return func(d *Dispatcher) { d.async = true }
}

func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(d *Dispatcher) { d.observer = obs }
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		timeout: DefaultActionTimeout,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger satisfies the reconciler's side-effect hook. In async mode the run
// is detached from the caller's cancellation.
func (d *Dispatcher) Trigger(ctx context.Context, order domain.Order) {
	if !d.async {
		d.Dispatch(ctx, order)
		return
	}
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Dispatch(detached, order)
	}()
}

// Dispatch runs every action registered for the order's status and waits for
// all of them.
func (d *Dispatcher) Dispatch(ctx context.Context, order domain.Order) Report {
	var actions []Action
	switch order.Status {
	case domain.OrderStatusConfirmed:
		actions = d.confirmed
	case domain.OrderStatusCancelled:
		actions = d.cancelled
	}
	report := Report{OrderID: order.ID}
	if len(actions) == 0 {
		return report
	}

	var g errgroup.Group
	var mu sync.Mutex
	for _, a := range actions {
		a := a
		g.Go(func() error {
			res := d.run(ctx, a, order)
			mu.Lock()
			report.Results = append(report.Results, res)
			mu.Unlock()
			// Failures are recorded, never returned, so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Action < report.Results[j].Action })
	return report
}

func (d *Dispatcher) run(ctx context.Context, a Action, order domain.Order) (res Result) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res.Action = a.Name()
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			d.logger.Printf("side effect failed order_id=%s action=%s err=%v", order.ID, a.Name(), res.Err)
		}
		if d.observer != nil {
			d.observer.ObserveSideEffect(a.Name(), res.Duration, res.Err)
		}
	}()

	res.Err = a.Run(ctx, order)
	return res
}

// Drain waits for async dispatches. Work still running when ctx ends is
// abandoned and ctx.Err() is returned.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
