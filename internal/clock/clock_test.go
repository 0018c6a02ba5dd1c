package clock

import (
	"testing"
	"time"
)

func TestNewFixed(t *testing.T) {
	t.Parallel()

	madrid := time.FixedZone("CET", 3600)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, madrid)
	clk := NewFixed(at)

	if got := clk.Now(); !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("expected %s in UTC, got %s", at.UTC(), got)
	}
	if !clk.Now().Equal(clk.Now()) {
		t.Fatalf("expected a fixed clock to never move")
	}
}

func TestNewSystem(t *testing.T) {
	t.Parallel()

	before := time.Now()
	got := NewSystem().Now()
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", got.Location())
	}
	if got.Before(before.Add(-time.Second)) || got.After(time.Now().Add(time.Second)) {
		t.Fatalf("system clock far from wall time: %s", got)
	}
}
