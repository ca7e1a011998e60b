package pulse

import (
	"testing"
)

func TestUntrackedReadSkipsDependency(t *testing.T) {
	tracked := NewSource("ut-tracked", 1)
	ignored := NewSource("ut-ignored", 100)

	var evals callCounter
	g := NewGuard("ut-g", func() (int, error) {
		evals.inc()
		var extra int
		Untracked(func() {
			extra = ignored.Get()
		})
		return tracked.Get() + extra, nil
	})

	if g.Value() != 101 {
		t.Fatalf("expected 101, got %d", g.Value())
	}

	ignored.Set(200)
	if evals.get() != 1 {
		t.Errorf("untracked read must not create a dependency, got %d evaluations", evals.get())
	}

	tracked.Set(2)
	if g.Value() != 202 {
		t.Errorf("expected 202, got %d", g.Value())
	}
}

func TestUntrackedNests(t *testing.T) {
	s := NewSource("utn-s", 1)

	var evals callCounter
	g := NewGuard("utn-g", func() (int, error) {
		evals.inc()
		var v int
		Untracked(func() {
			Untracked(func() {})
			v = s.Get()
		})
		return v, nil
	})

	if g.Value() != 1 {
		t.Fatalf("expected 1, got %d", g.Value())
	}
	s.Set(2)
	if evals.get() != 1 {
		t.Errorf("masking must survive nested Untracked, got %d evaluations", evals.get())
	}
}

func TestUntrackedOutsideEvaluation(t *testing.T) {
	s := NewSource("uto-s", 7)
	var v int
	Untracked(func() { v = s.Get() })
	if v != 7 {
		t.Errorf("expected 7, got %d", v)
	}
}

func TestPerGoroutineIsolation(t *testing.T) {
	s := NewSource("iso-s", 1)

	// A read on a different goroutine while a guard evaluates must not
	// leak a dependency into the guard's frame.
	done := make(chan struct{})
	inEval := make(chan struct{})
	proceed := make(chan struct{})

	go func() {
		<-inEval
		s.Get()
		close(proceed)
		close(done)
	}()

	other := NewSource("iso-other", 1)
	var evals callCounter
	g := NewGuard("iso-g", func() (int, error) {
		evals.inc()
		if evals.get() == 1 {
			close(inEval)
			<-proceed
		}
		return other.Get(), nil
	})
	_ = g
	<-done

	s.Set(2)
	if evals.get() != 1 {
		t.Errorf("foreign-goroutine read leaked into the evaluation, %d evaluations", evals.get())
	}
}
