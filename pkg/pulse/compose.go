package pulse

import (
	"reflect"
	"strings"
)

// Condition is the non-generic read surface shared by every Guard[T],
// used by the composition helpers. Reading through it registers
// dependency edges like any other guard read.
type Condition interface {
	Name() string
	OK() bool
	Failing() bool
	Pending() bool
	Reason() *Reason
}

// All returns a guard that is ok iff every member is ok. The first
// failing member's reason (in argument order) is propagated as the
// composite's own failure reason. Every member is read each run —
// reading is what establishes the dependency edges — so short-circuiting
// happens only at the reporting level.
func All(name string, members ...Condition) *Guard[bool] {
	if name == "" {
		name = callSite(1)
	}
	return NewGuard(name, func() (bool, error) {
		var firstFail Condition
		pending := false
		for _, m := range members {
			if m.OK() {
				continue
			}
			if m.Failing() {
				if firstFail == nil {
					firstFail = m
				}
			} else {
				pending = true
			}
		}
		if firstFail != nil {
			return false, firstFail.Reason()
		}
		if pending {
			return false, ErrPending
		}
		return true, nil
	})
}

// Any returns a guard that is ok iff at least one member is ok. The first
// ok member wins immediately. When every member fails, the failure
// messages are concatenated into one combined reason, joined with " and ".
func Any(name string, members ...Condition) *Guard[bool] {
	if name == "" {
		name = callSite(1)
	}
	return NewGuard(name, func() (bool, error) {
		failed := 0
		messages := make([]string, 0, len(members))
		for _, m := range members {
			if m.OK() {
				return true, nil
			}
			if m.Failing() {
				failed++
				if r := m.Reason(); r != nil {
					messages = append(messages, r.Message)
				}
			}
		}
		if failed == len(members) {
			return false, NewReason(CodeFail, strings.Join(messages, " and "))
		}
		return false, ErrPending
	})
}

// Not returns a guard that inverts its target. The target may be a
// Condition (ok when the condition is not ok) or a zero-argument
// bool-returning function (ok when it returns false). Anything else
// panics at construction.
func Not(name string, target any) *Guard[bool] {
	if name == "" {
		name = callSite(1)
	}
	switch t := target.(type) {
	case Condition:
		return NewGuard(name, func() (bool, error) {
			return !t.OK(), nil
		})
	case func() bool:
		return NewGuard(name, func() (bool, error) {
			return !t(), nil
		})
	default:
		panic("pulse: Not target must be a Condition or func() bool")
	}
}

// Compute returns a guard wrapping a pure transformation of its
// dependencies. Each dependency is resolved positionally: sources are
// read through their tracked accessor, callables (zero-argument
// functions) are invoked, everything else is passed through as a
// literal.
//
//	full := Compute("full-name", []any{first.Get, last.Get},
//	    func(args ...any) string {
//	        return args[0].(string) + " " + args[1].(string)
//	    })
func Compute[T any](name string, deps []any, processor func(args ...any) T) *Guard[T] {
	if processor == nil {
		panic("pulse: Compute requires a processor")
	}
	if name == "" {
		name = callSite(1)
	}
	return NewGuard(name, func() (T, error) {
		args := make([]any, len(deps))
		for i, d := range deps {
			args[i] = resolveDep(d)
		}
		return processor(args...), nil
	})
}

// resolveDep calls zero-argument single-result functions, reads value
// units through their tracked accessor, and passes everything else
// through unchanged.
func resolveDep(d any) any {
	if r, ok := d.(interface{ GetAny() any }); ok {
		return r.GetAny()
	}
	v := reflect.ValueOf(d)
	if v.Kind() == reflect.Func && v.Type().NumIn() == 0 && v.Type().NumOut() >= 1 {
		return v.Call(nil)[0].Interface()
	}
	return d
}
