package pulse

import "errors"

// ErrPending is the explicit non-committal signal: an evaluator returning
// it leaves (or puts) the guard in the pending status instead of failing.
// This is distinct from failure — a pending guard is "not decided yet",
// a failing guard is "decided no".
//
//	latest := NewGuard("release-known", func() (string, error) {
//	    if !cache.warm() {
//	        return "", pulse.ErrPending
//	    }
//	    return cache.latest(), nil
//	})
var ErrPending = errors.New("pulse: evaluation pending")

// ErrUnknownUnit is returned when a registry lookup names no live unit.
var ErrUnknownUnit = errors.New("pulse: unknown unit")

// ErrNotGuard is returned when an operation requiring a guard is invoked
// against a unit of another kind.
var ErrNotGuard = errors.New("pulse: unit is not a guard")

// ErrNotSource is returned when a value write is issued against a unit
// that is not a source or signal.
var ErrNotSource = errors.New("pulse: unit is not a source")
