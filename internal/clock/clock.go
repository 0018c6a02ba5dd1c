// Package clock lets services and verifiers take "now" as a dependency.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// NewSystem returns wall-clock time in UTC. Order timestamps and signature
// freshness checks both rely on UTC.
func NewSystem() Clock {
	return Func(func() time.Time { return time.Now().UTC() })
}

// NewFixed always reports t.
func NewFixed(t time.Time) Clock {
	t = t.UTC()
	return Func(func() time.Time { return t })
}
