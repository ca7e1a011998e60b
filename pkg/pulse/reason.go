package pulse

import (
	"errors"
	"fmt"
)

// Well-known reason codes. Every guard failure converges on a *Reason;
// callers distinguish failure kinds only by inspecting the code.
const (
	// CodeError is the default code for failures normalized from plain
	// errors or panics that carry no structured reason.
	CodeError = "error"

	// CodeFail is the code for sentinel-value failures (an evaluator
	// returning literal false) and for explicit Fail calls without a code.
	CodeFail = "fail"

	// CodeCyclic is the code for cyclic-dependency failures detected by
	// the tracking context before the evaluator's own logic can run.
	CodeCyclic = "cyclic"
)

// Reason is a structured failure payload: a machine-readable code, a
// human-readable message, and optional arbitrary metadata. Reason
// implements error so evaluators can return one directly.
type Reason struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// NewReason creates a reason with the given code and message.
func NewReason(code, message string) *Reason {
	return &Reason{Code: code, Message: message}
}

// Reasonf creates a reason with a formatted message.
func Reasonf(code, format string, args ...any) *Reason {
	return &Reason{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMeta attaches a metadata entry and returns the reason for chaining.
func (r *Reason) WithMeta(key string, value any) *Reason {
	if r.Meta == nil {
		r.Meta = make(map[string]any)
	}
	r.Meta[key] = value
	return r
}

// Error implements the error interface.
func (r *Reason) Error() string {
	if r.Code != "" && r.Code != CodeError {
		return fmt.Sprintf("%s: %s", r.Code, r.Message)
	}
	return r.Message
}

// String returns the human-readable message.
func (r *Reason) String() string {
	return r.Message
}

// clone returns a shallow copy so committed state never aliases a reason
// the caller may still mutate via WithMeta.
func (r *Reason) clone() *Reason {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// normalizeReason converts an arbitrary failure value into a *Reason.
// An existing *Reason keeps its code, message, and metadata; errors and
// strings are wrapped with the default code; anything else is formatted.
func normalizeReason(v any) *Reason {
	switch val := v.(type) {
	case nil:
		return NewReason(CodeError, "unknown failure")
	case *Reason:
		return val
	case error:
		var r *Reason
		if errors.As(val, &r) {
			return r
		}
		return NewReason(CodeError, val.Error())
	case string:
		return NewReason(CodeError, val)
	default:
		return Reasonf(CodeError, "%v", val)
	}
}

// cyclicReason builds the failure reported when a guard is found on the
// active evaluator stack while being pushed again.
func cyclicReason(name string) *Reason {
	return Reasonf(CodeCyclic, "cyclic dependency detected involving guard %q", name).
		WithMeta("guard", name)
}

// defaultFailReason is the reason attached to sentinel-value failures.
func defaultFailReason(name string) *Reason {
	return Reasonf(CodeFail, "%s failed", name)
}

// failPanic wraps a reason raised through FailNow so guard recovery can
// distinguish an explicit fail signal from an ordinary panic.
type failPanic struct {
	reason *Reason
}

// FailNow aborts the enclosing guard evaluation immediately with the
// given reason, which may be a *Reason, an error, or a plain message.
// It never returns: the evaluating guard recovers the signal and commits
// a fail status. Calling FailNow outside a guard evaluation panics.
//
// Example:
//
//	ready := NewGuard("config-ready", func() (bool, error) {
//	    if cfg == nil {
//	        pulse.FailNow(pulse.NewReason("missing", "no config loaded"))
//	    }
//	    return true, nil
//	})
func FailNow(reason any) {
	panic(failPanic{reason: normalizeReason(reason)})
}

// OK is an identity passthrough documenting explicit success. It has no
// control-flow effect; it exists purely to make evaluator bodies read
// symmetrically with FailNow.
func OK[T any](value T) T {
	return value
}
