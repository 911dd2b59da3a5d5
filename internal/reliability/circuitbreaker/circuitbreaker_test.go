package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)
	cb := New(2, 1, time.Second)
	cb.now = func() time.Time { return now }

	var transitions []State
	cb.OnStateChange(func(_, to State) { transitions = append(transitions, to) })

	boom := errors.New("redis down")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected fast failure while open, got %v (called=%v)", err, called)
	}

	now = now.Add(2 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to run, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)
	cb := New(1, 1, time.Second)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	if !cb.Allow() || cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open probe to be allowed")
	}
	cb.RecordFailure()
	if cb.State() != StateOpen || cb.Allow() {
		t.Fatalf("expected circuit to reopen")
	}
}
