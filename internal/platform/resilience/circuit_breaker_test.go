package resilience

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker(now *time.Time) *CircuitBreaker {
	b := NewCircuitBreaker(CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		OpenTimeout:      10 * time.Second,
		HalfOpenMaxReq:   2,
	})
	b.now = func() time.Time { return *now }
	return b
}

func TestCircuitTripsAfterThreshold(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed before threshold", b.State())
	}

	b.RecordFailure()
	if b.State() != CircuitOpen {
		t.Fatalf("state = %v, want open at threshold", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitHalfOpenProbesBounded(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	now = now.Add(11 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("first probe rejected: %v", err)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("second probe rejected: %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("third probe should be rejected, got %v", err)
	}
}

func TestCircuitClosesAfterProbeSuccesses(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	now = now.Add(11 * time.Second)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("probe rejected: %v", err)
		}
		b.RecordSuccess()
	}

	if b.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed after probe wins", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after recovery = %v", err)
	}
}

func TestCircuitReopensOnProbeFailure(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	now = now.Add(11 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	b.RecordFailure()

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() after failed probe = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitSuccessResetsFailureRun(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := newTestBreaker(&now)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed (failures are consecutive)", b.State())
	}
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{})

	for i := 0; i < defaultFailureThreshold-1; i++ {
		b.RecordFailure()
	}
	if b.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed below default threshold", b.State())
	}

	b.RecordFailure()
	if b.State() != CircuitOpen {
		t.Fatalf("state = %v, want open at default threshold", b.State())
	}
}
