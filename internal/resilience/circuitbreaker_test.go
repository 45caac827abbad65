package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errStore = errors.New("database is locked")

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2025, 4, 1, 9, 15, 0, 0, time.UTC)
	cb := NewCircuitBreaker("results", CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Cooldown:         cooldown,
	})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()
	calls := 0
	failing := func() error { calls++; return errStore }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errStore) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}

	if err := cb.Execute(ctx, failing); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 3 {
		t.Errorf("guarded function ran %d times, want 3", calls)
	}

	stats := cb.Stats()
	if stats.Calls != 4 || stats.Failures != 3 || stats.Rejected != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errStore })
	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errStore })

	if cb.State() != CircuitClosed {
		t.Errorf("non-consecutive failures opened the circuit")
	}
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errStore })
	if cb.State() != CircuitOpen {
		t.Fatal("expected open circuit")
	}

	t.Run("trial failure reopens", func(t *testing.T) {
		*now = now.Add(2 * time.Minute)
		_ = cb.Execute(ctx, func() error { return errStore })
		if cb.State() != CircuitOpen {
			t.Errorf("state = %s, want OPEN", cb.State())
		}
		if err := cb.Execute(ctx, func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("cooldown restarted on reopen, got %v", err)
		}
	})

	t.Run("trial success closes", func(t *testing.T) {
		*now = now.Add(2 * time.Minute)
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatal(err)
		}
		if cb.State() != CircuitClosed {
			t.Errorf("state = %s, want CLOSED", cb.State())
		}
	})
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)

	err := cb.Execute(context.Background(), func() error { return context.Canceled })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Error("cancellation counted as a store failure")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	if err := cb.Execute(ctx, func() error { ran = true; return nil }); !errors.Is(err, context.Canceled) || ran {
		t.Errorf("cancelled context should short-circuit: err=%v ran=%v", err, ran)
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)

	got, err := ExecuteWithResult(cb, context.Background(), func() ([]string, error) {
		return []string{"NIFTY", "INFY"}, nil
	})
	if err != nil || len(got) != 2 {
		t.Errorf("got %v, %v", got, err)
	}

	cb.Reset()
	_, err = ExecuteWithResult(cb, context.Background(), func() (int, error) { return 0, errStore })
	if !errors.Is(err, errStore) {
		t.Errorf("got %v", err)
	}
}
