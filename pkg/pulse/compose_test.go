package pulse

import (
	"testing"
)

func TestAllFirstFailureWins(t *testing.T) {
	a := NewGuard("all-a", func() (bool, error) { return true, nil })
	b := NewGuard("all-b", func() (bool, error) {
		return false, NewReason("x", "b broke")
	})
	c := NewGuard("all-c", func() (bool, error) {
		return false, NewReason("y", "c broke")
	})

	all := All("all", a, b, c)
	if !all.Failing() {
		t.Fatal("All should fail when any member fails")
	}
	if all.Reason().Code != "x" {
		t.Errorf("first failing member's reason should win, got %q", all.Reason().Code)
	}
}

func TestAllOK(t *testing.T) {
	a := NewGuard("all-ok-a", func() (bool, error) { return true, nil })
	b := NewGuard("all-ok-b", func() (bool, error) { return true, nil })

	all := All("all-ok", a, b)
	if !all.OK() {
		t.Error("All should be ok when every member is ok")
	}
}

func TestAllPending(t *testing.T) {
	a := NewGuard("all-p-a", func() (bool, error) { return true, nil })
	b := NewGuard("all-p-b", func() (bool, error) { return false, ErrPending })

	all := All("all-p", a, b)
	if !all.Pending() {
		t.Error("All should be pending when a member is pending and none fail")
	}
}

func TestAllTracksAllMembers(t *testing.T) {
	srcA := NewSource("all-track-a", false)
	a := NewGuard("all-t-a", func() (bool, error) {
		if !srcA.Get() {
			return false, NewReason("a", "a broke")
		}
		return true, nil
	})
	b := NewGuard("all-t-b", func() (bool, error) {
		return false, NewReason("b", "b broke")
	})

	all := All("all-t", a, b)
	if all.Reason().Code != "a" {
		t.Fatalf("first failing member should win, got %v", all.Reason())
	}

	// b sits after the failing member but was still read; when a heals,
	// b's failure surfaces without any write to b.
	srcA.Set(true)
	if all.Reason().Code != "b" {
		t.Errorf("expected handoff to the next failing member, got %v", all.Reason())
	}
}

func TestAnyShortCircuits(t *testing.T) {
	a := NewGuard("any-a", func() (bool, error) {
		return false, NewReason("a", "a down")
	})
	b := NewGuard("any-b", func() (bool, error) { return true, nil })

	any := Any("any", a, b)
	if !any.OK() {
		t.Error("Any should be ok when one member is ok")
	}
}

func TestAnyCombinesFailures(t *testing.T) {
	a := NewGuard("anyf-a", func() (bool, error) {
		return false, NewReason("a", "primary down")
	})
	b := NewGuard("anyf-b", func() (bool, error) {
		return false, NewReason("b", "fallback down")
	})

	any := Any("anyf", a, b)
	if !any.Failing() {
		t.Fatal("Any should fail when every member fails")
	}
	want := "primary down and fallback down"
	if any.Reason().Message != want {
		t.Errorf("expected combined message %q, got %q", want, any.Reason().Message)
	}
}

func TestAnyPending(t *testing.T) {
	a := NewGuard("anyp-a", func() (bool, error) {
		return false, NewReason("a", "down")
	})
	b := NewGuard("anyp-b", func() (bool, error) { return false, ErrPending })

	any := Any("anyp", a, b)
	if !any.Pending() {
		t.Error("Any with no ok member and a pending member should be pending")
	}
}

func TestNotInvertsCondition(t *testing.T) {
	src := NewSource("not-src", true)
	inner := NewGuard("not-inner", func() (bool, error) { return src.Get(), nil })

	not := Not("not", inner)
	if !not.Failing() {
		t.Error("Not of an ok guard should fail")
	}

	src.Set(false)
	if !not.OK() {
		t.Error("Not of a failing guard should be ok")
	}
}

func TestNotOfPredicate(t *testing.T) {
	not := Not("not-fn", func() bool { return false })
	if !not.OK() {
		t.Error("Not of a false predicate should be ok")
	}
}

func TestNotRejectsUnknownTarget(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Not with an unsupported target should panic")
		}
	}()
	Not("not-bad", 42)
}

func TestComputePositionalArgs(t *testing.T) {
	width := NewSource("cp-width", 3)
	height := NewSource("cp-height", 4)

	area := Compute("area", []any{width, height}, func(args ...any) int {
		return args[0].(int) * args[1].(int)
	})

	if area.Value() != 12 {
		t.Fatalf("expected 12, got %d", area.Value())
	}

	width.Set(5)
	if area.Value() != 20 {
		t.Errorf("expected 20 after update, got %d", area.Value())
	}
}

func TestComputeFunctionDep(t *testing.T) {
	n := NewSource("cf-n", 10)
	double := Compute("double", []any{func() int { return n.Get() * 2 }}, func(args ...any) int {
		return args[0].(int)
	})

	if double.Value() != 20 {
		t.Fatalf("expected 20, got %d", double.Value())
	}
	n.Set(15)
	if double.Value() != 30 {
		t.Errorf("expected 30, got %d", double.Value())
	}
}
