package pulse

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive evaluation state for a goroutine.
// Each goroutine has its own tracking context so concurrent guard
// evaluation never observes another goroutine's evaluation stack.
type trackingContext struct {
	// frames is the active-evaluator stack, innermost last. It is a true
	// stack, not a set: re-entrancy rules depend on call-frame order, and
	// membership anywhere in the stack is what makes a cycle.
	frames []*evalFrame

	// maskDepth > 0 suppresses dependency registration (Untracked).
	// The frame stack itself stays intact so cycle detection still works.
	maskDepth int

	// batchDepth tracks nested Batch() calls.
	// When > 0, unit changes queue notifications instead of firing.
	batchDepth int

	// pending accumulates dependents to notify when the outermost batch
	// exits. Deduplicated by ID before notification.
	pending []Trackable
}

// evalFrame is one entry on the evaluator stack: a guard run in progress.
// Dependencies are collected per-frame rather than on the guard itself, so
// overlapping async runs of the same guard never interleave their sets.
type evalFrame struct {
	guard *guardCore
	runID uint64

	mu   sync.Mutex
	deps []Unit
}

// addDependency records a unit read during this frame's run.
// Deduplicates by unit ID.
func (f *evalFrame) addDependency(u Unit) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uid := u.ID()
	for _, d := range f.deps {
		if d.ID() == uid {
			return
		}
	}
	f.deps = append(f.deps, u)
}

// dependencies returns a copy of the frame's collected dependency set.
func (f *evalFrame) dependencies() []Unit {
	f.mu.Lock()
	defer f.mu.Unlock()

	deps := make([]Unit, len(f.deps))
	copy(deps, f.deps)
	return deps
}

// trackingContexts stores per-goroutine tracking contexts.
// Using sync.Map for concurrent access from multiple goroutines.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
// Note: This is an implementation detail and should not be relied upon externally.
func getGoroutineID() uint64 {
	// Use a buffer to read the stack
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	// Parse the ID from the stack trace
	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine.
// If no context exists, creates a new one.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// currentFrame returns the innermost evaluation frame, or nil when no
// guard is evaluating on this goroutine (reads create no subscriptions)
// or registration is masked by Untracked.
func currentFrame() *evalFrame {
	ctx := getTrackingContext()
	if ctx.maskDepth > 0 || len(ctx.frames) == 0 {
		return nil
	}
	return ctx.frames[len(ctx.frames)-1]
}

// runInFrame executes fn with the frame pushed onto the evaluator stack,
// popping it on all exit paths. If the frame's guard is already anywhere
// on the stack the push is refused and a cyclic-dependency reason is
// returned instead of recursing: this converts what would be unbounded
// recursion into a reported, catchable failure.
func runInFrame(f *evalFrame, fn func()) *Reason {
	ctx := getTrackingContext()

	for _, active := range ctx.frames {
		if active.guard == f.guard {
			return cyclicReason(f.guard.base.name)
		}
	}

	ctx.frames = append(ctx.frames, f)
	defer func() {
		ctx.frames = ctx.frames[:len(ctx.frames)-1]
	}()

	fn()
	return nil
}

// Untracked runs a function without registering unit reads as
// dependencies of the currently evaluating guard.
//
// Example:
//
//	Untracked(func() {
//	    // Reading count here won't subscribe the evaluating guard
//	    value := count.Get()
//	})
//
// Note: For single reads, use the unit's Peek method instead, which is
// more efficient and clearer in intent.
func Untracked(fn func()) {
	ctx := getTrackingContext()
	ctx.maskDepth++
	defer func() {
		ctx.maskDepth--
	}()
	fn()
}

// getBatchDepth returns the current batch nesting depth.
func getBatchDepth() int {
	return getTrackingContext().batchDepth
}

// incrementBatchDepth increases the batch depth by 1.
func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth decreases the batch depth by 1.
// Returns true if batch depth reached 0 (batch complete).
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

// queuePendingNotification adds a dependent to the pending queue.
// Called during batch mode when a unit changes.
func queuePendingNotification(t Trackable) {
	ctx := getTrackingContext()
	ctx.pending = append(ctx.pending, t)
}

// drainPendingNotifications returns and clears the pending queue.
// Called when the outermost batch exits.
func drainPendingNotifications() []Trackable {
	ctx := getTrackingContext()
	pending := ctx.pending
	ctx.pending = nil
	return pending
}
