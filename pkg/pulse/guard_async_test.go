package pulse

import (
	"context"
	"testing"
)

func TestAsyncGuardPendingThenOK(t *testing.T) {
	release := make(chan struct{})
	g := NewAsyncGuard("slow-check", func(_ context.Context) (int, error) {
		<-release
		return 42, nil
	})

	if !g.Pending() {
		t.Fatal("async guard should start pending")
	}

	close(release)
	waitFor(t, func() bool { return g.OK() })

	if g.Value() != 42 {
		t.Errorf("expected 42, got %d", g.Value())
	}
}

func TestAsyncGuardStaleRunDiscarded(t *testing.T) {
	n := NewSource("race-n", 0)

	started := make(chan int, 3)
	gate := make(chan struct{})
	g := NewAsyncGuard("race", func(_ context.Context) (int, error) {
		v := n.Get()
		started <- v
		<-gate
		return v, nil
	})

	// The evaluator registers its dependency on n before blocking, so
	// each Set below is guaranteed to supersede the previous run.
	<-started
	n.Set(1)
	<-started
	n.Set(3)
	<-started

	close(gate)
	waitFor(t, func() bool { return g.OK() })

	if g.Value() != 3 {
		t.Errorf("only the newest run may commit, got %d", g.Value())
	}
	if len(started) != 0 {
		t.Errorf("expected exactly 3 evaluator invocations, %d extra", len(started))
	}
}

func TestAsyncGuardRejectionKeepsLastReason(t *testing.T) {
	mode := NewSource("rej-mode", "fail-a")
	release := make(chan struct{}, 8)
	g := NewAsyncGuard("rej", func(_ context.Context) (bool, error) {
		m := mode.Get()
		<-release
		switch m {
		case "fail-a":
			return false, NewReason("a", "first failure")
		case "fail-b":
			return false, NewReason("b", "second failure")
		}
		return true, nil
	})

	release <- struct{}{}
	waitFor(t, func() bool { return g.Failing() })
	if g.Reason().Code != "a" {
		t.Fatalf("expected code a, got %q", g.Reason().Code)
	}

	mode.Set("fail-b")
	release <- struct{}{}
	waitFor(t, func() bool {
		r := g.Reason()
		return r != nil && r.Code == "b"
	})

	mode.Set("ok")
	release <- struct{}{}
	waitFor(t, func() bool { return g.OK() })

	lr := g.LastReason()
	if lr == nil || lr.Code != "b" {
		t.Errorf("LastReason should hold the most recent failure, got %v", lr)
	}
}

func TestAsyncGuardPendingFlipNotifiesOnce(t *testing.T) {
	n := NewSource("flip-n", 0)
	release := make(chan struct{}, 4)
	g := NewAsyncGuard("flip", func(_ context.Context) (int, error) {
		v := n.Get()
		<-release
		return v, nil
	})

	release <- struct{}{}
	waitFor(t, func() bool { return g.OK() })

	var pendings callCounter
	g.Subscribe(func(s State) {
		if s.Status == StatusPending {
			pendings.inc()
		}
	})

	n.Set(1)
	if !g.Pending() {
		t.Fatal("guard should flip to pending while re-evaluating")
	}
	release <- struct{}{}
	waitFor(t, func() bool { return g.OK() && g.Value() == 1 })

	if pendings.get() != 1 {
		t.Errorf("expected exactly 1 pending notification, got %d", pendings.get())
	}
}
