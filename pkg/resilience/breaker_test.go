package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, config Config) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	cb, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create circuit breaker: %v", err)
	}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb.now = clock.Now
	return cb, clock
}

var errDB = errors.New("connection refused")

func fail(ctx context.Context) error    { return errDB }
func succeed(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(t, Config{
		Enabled:     true,
		MaxFailures: 3,
		Timeout:     time.Minute,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errDB) {
			t.Fatalf("attempt %d: expected errDB, got %v", i+1, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("Expected StateOpen, got %v", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("Open circuit must reject without calling fn, err=%v called=%v", err, called)
	}
	if cb.Counts().Rejected != 1 {
		t.Errorf("Expected 1 rejected call, got %d", cb.Counts().Rejected)
	}
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("Unexpected transitions: %v", transitions)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{Enabled: true, MaxFailures: 2, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)

	if cb.State() != StateClosed {
		t.Errorf("Expected StateClosed, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(t, Config{Enabled: true, MaxFailures: 1, Timeout: 10 * time.Second, SuccessThreshold: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("Expected StateOpen, got %v", cb.State())
	}

	clock.Advance(10 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected StateHalfOpen after timeout, got %v", cb.State())
	}

	_ = cb.Execute(ctx, succeed)
	if cb.State() != StateHalfOpen {
		t.Errorf("One success must not close the circuit, got %v", cb.State())
	}
	_ = cb.Execute(ctx, succeed)
	if cb.State() != StateClosed {
		t.Errorf("Expected StateClosed, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, Config{Enabled: true, MaxFailures: 1, Timeout: 10 * time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(11 * time.Second)
	_ = cb.Execute(ctx, fail)

	if cb.State() != StateOpen {
		t.Errorf("Expected StateOpen, got %v", cb.State())
	}
	if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_ContextErrorsIgnored(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{Enabled: true, MaxFailures: 1, Timeout: time.Minute})

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("Cancellation must not open the circuit")
	}
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{MaxFailures: 1})
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	if cb.State() != StateClosed {
		t.Errorf("Disabled breaker must stay closed, got %v", cb.State())
	}
}

func TestConfig_Defaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	if c.MaxFailures != 5 || c.Timeout != 30*time.Second || c.SuccessThreshold != 1 {
		t.Errorf("Unexpected defaults: %+v", c)
	}
	c.Enabled = true
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
