package pulse

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestSerializeSettledGuards(t *testing.T) {
	ok := NewGuard("ser-ok", func() (string, error) { return "ready", nil })
	bad := NewGuard("ser-bad", func() (bool, error) {
		return false, NewReason("x", "broken")
	})

	snap, err := Serialize(context.Background(), ok, bad)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	if e := snap["ser-ok"]; e.Status != StatusOK || e.Value != "ready" {
		t.Errorf("unexpected ok entry: %+v", e)
	}
	if e := snap["ser-bad"]; e.Status != StatusFail || e.Reason == nil || e.Reason.Code != "x" {
		t.Errorf("unexpected fail entry: %+v", e)
	}
}

func TestSerializeAwaitsAsync(t *testing.T) {
	release := make(chan struct{})
	g := NewAsyncGuard("ser-async", func(_ context.Context) (int, error) {
		<-release
		return 9, nil
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	snap, err := Serialize(context.Background(), g)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if e := snap["ser-async"]; e.Status != StatusOK || e.Value != 9 {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestSerializeContextCancel(t *testing.T) {
	g := NewAsyncGuard("ser-stuck", func(_ context.Context) (int, error) {
		select {} // never settles
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := Serialize(ctx, g); err == nil {
		t.Error("Serialize should fail when the context expires")
	}
}

func TestHydrateBypassesEvaluator(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	Hydrate(Snapshot{
		"hyd-bypass": {Status: StatusOK, Value: "from snapshot"},
	})

	g := NewGuard("hyd-bypass", func() (string, error) {
		t.Error("hydrated guard must not run its evaluator at construction")
		return "", nil
	})

	if !g.OK() || g.Value() != "from snapshot" {
		t.Errorf("expected adopted state, got %+v", g.State())
	}
}

func TestHydrateExistingGuard(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	release := make(chan struct{})
	defer close(release)
	g := NewAsyncGuard("hyd-existing", func(_ context.Context) (int, error) {
		<-release
		return 1, nil
	})

	if !g.Pending() {
		t.Fatal("guard should be pending before hydration")
	}

	Hydrate(Snapshot{
		"hyd-existing": {Status: StatusFail, Reason: NewReason("h", "hydrated failure")},
	})

	if !g.Failing() {
		t.Error("hydration should force-set the state immediately")
	}
	if g.Reason() == nil || g.Reason().Code != "h" {
		t.Errorf("expected hydrated reason, got %v", g.Reason())
	}
}

func TestHydrateSupersedesInFlightRun(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	release := make(chan struct{})
	g := NewAsyncGuard("hyd-race", func(_ context.Context) (int, error) {
		<-release
		return 777, nil
	})

	Hydrate(Snapshot{
		"hyd-race": {Status: StatusOK, Value: 5},
	})
	close(release)

	// Give the superseded run a chance to finish; its commit must be
	// discarded in favor of the adopted state.
	time.Sleep(20 * time.Millisecond)
	if g.Value() != 5 {
		t.Errorf("in-flight run must not overwrite hydrated state, got %d", g.Value())
	}
}

func TestHydrateIdempotent(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	snap := Snapshot{"hyd-idem": {Status: StatusOK, Value: "v"}}
	Hydrate(snap)

	g := NewGuard("hyd-idem", func() (string, error) { return "evaluated", nil })
	if g.Value() != "v" {
		t.Fatalf("expected adopted value, got %q", g.Value())
	}

	var calls callCounter
	g.Subscribe(func(State) { calls.inc() })

	Hydrate(snap)
	if g.Value() != "v" {
		t.Errorf("re-hydration should re-commit the same state, got %q", g.Value())
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	in := Snapshot{
		"a": {Status: StatusOK, Value: "hello"},
		"b": {Status: StatusFail, Reason: NewReason("gone", "missing")},
		"c": {Status: StatusPending},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if out["a"].Status != StatusOK || out["a"].Value != "hello" {
		t.Errorf("entry a did not round-trip: %+v", out["a"])
	}
	if out["b"].Reason == nil || out["b"].Reason.Code != "gone" {
		t.Errorf("entry b did not round-trip: %+v", out["b"])
	}
	if out["c"].Status != StatusPending {
		t.Errorf("entry c did not round-trip: %+v", out["c"])
	}
}
