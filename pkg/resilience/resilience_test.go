package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []State
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Second,
		OnStateChange:    func(_ string, s State) { transitions = append(transitions, s) },
	})
	cb.now = func() time.Time { return now }
	fail := errors.New("fail")

	cb.Execute(func() error { return fail })
	if cb.State() != StateClosed {
		t.Fatal("one failure should not open the circuit")
	}
	cb.Execute(func() error { return fail })
	if cb.State() != StateOpen {
		t.Fatal("threshold reached, circuit should be open")
	}
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open circuit let a call through: err=%v called=%v", err, called)
	}

	now = now.Add(time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open call err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("successful half-open call should close, state = %s", cb.State())
	}
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }
	cb.Execute(func() error { return errors.New("x") })
	now = now.Add(2 * time.Second)
	cb.Execute(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Errorf("state = %s, want open", cb.State())
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "flaky", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("err=%v attempts=%d", err, attempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	bad := errors.New("bad credentials")
	attempts := 0
	err := Retry(context.Background(), "auth", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return Permanent(bad)
	})
	if err != bad || attempts != 1 {
		t.Errorf("err=%v attempts=%d", err, attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("boom")
	err := Retry(context.Background(), "always", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}, func() error {
		return errors.New("x")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if err := WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil }); err != nil {
		t.Errorf("fast fn err = %v", err)
	}
}
