package pulse

import "testing"

func TestSignalBasic(t *testing.T) {
	s := NewSignal("sig-basic", 0)

	if s.Get() != 0 {
		t.Errorf("expected initial value 0, got %v", s.Get())
	}

	s.Set(5)
	if s.Get() != 5 {
		t.Errorf("expected value 5, got %v", s.Get())
	}

	s.Update(func(v any) any { return v.(int) * 2 })
	if s.Get() != 10 {
		t.Errorf("expected value 10, got %v", s.Get())
	}
}

func TestSignalEqualityGate(t *testing.T) {
	s := NewSignal("sig-equality", "a")

	var calls callCounter
	s.Subscribe(func(any) { calls.inc() })

	s.Set("a")
	if calls.get() != 0 {
		t.Errorf("equal write should not notify, got %d calls", calls.get())
	}

	s.Set("b")
	if calls.get() != 1 {
		t.Errorf("expected 1 notification, got %d", calls.get())
	}
}

func TestSignalDependencyTracking(t *testing.T) {
	s := NewSignal("sig-track", 1)

	var evals callCounter
	g := NewGuard("sig-reader", func() (int, error) {
		evals.inc()
		return s.Get().(int), nil
	})

	s.Set(2)
	if evals.get() != 2 {
		t.Errorf("expected re-evaluation on signal change, got %d", evals.get())
	}
	if g.Value() != 2 {
		t.Errorf("expected guard value 2, got %d", g.Value())
	}
}

func TestSignalWithEquals(t *testing.T) {
	s := NewSignal("sig-witheq", 10).
		WithEquals(func(a, b any) bool { return a.(int)%2 == b.(int)%2 })

	var calls callCounter
	s.Subscribe(func(any) { calls.inc() })

	// Same parity: treated as equal
	s.Set(12)
	if calls.get() != 0 {
		t.Errorf("custom equality should suppress notification, got %d calls", calls.get())
	}

	s.Set(13)
	if calls.get() != 1 {
		t.Errorf("expected 1 notification, got %d", calls.get())
	}
}
