package pulse

import (
	"context"
	"sync"
	"time"
)

// guardCore is the non-generic evaluation engine shared by every Guard[T].
// It owns the status/reason state machine, run-id allocation, dependency
// bookkeeping, and dependent notification. Guard[T] is a thin typed layer
// over it, mirroring how the typed cells sit over unitBase.
type guardCore struct {
	base unitBase

	// eval runs the wrapped evaluator. Async guards run it on a fresh
	// goroutine; sync guards run it in the caller's frame.
	eval  func(context.Context) (any, error)
	async bool

	mu         sync.Mutex
	status     Status
	value      any
	reason     *Reason
	lastReason *Reason
	updatedAt  time.Time

	// runID is the monotonically increasing cancellation token: only the
	// run whose captured id still matches at completion time commits.
	runID uint64

	// lastDeps is the dependency set of the last completed run. It is
	// persisted through failure so introspection still reports what the
	// guard was looking at when it failed.
	lastDeps []Unit

	subMu sync.Mutex
	subs  map[uint64]func(State)
}

func newGuardCore(name string, eval func(context.Context) (any, error), async bool) *guardCore {
	return &guardCore{
		base:   newUnitBase(name, KindGuard),
		eval:   eval,
		async:  async,
		status: StatusPending,
	}
}

// ID returns the unique identifier for this guard.
func (g *guardCore) ID() uint64 { return g.base.ID() }

// Name returns the guard's registered name.
func (g *guardCore) Name() string { return g.base.Name() }

// Kind returns KindGuard.
func (g *guardCore) Kind() Kind { return g.base.Kind() }

// Watch registers a low-level change listener.
func (g *guardCore) Watch(fn func()) func() { return g.base.Watch(fn) }

// Notify implements Trackable: a dependency changed, re-evaluate.
func (g *guardCore) Notify() {
	g.Evaluate()
}

// Evaluate triggers a full evaluation run. Called at construction, on
// every dependency notification, and manually through the inspector.
func (g *guardCore) Evaluate() {
	runID := g.nextRun()
	if g.async {
		g.startAsync(runID)
		return
	}
	g.runSync(runID)
}

// nextRun allocates a new run id, invalidating any in-flight run.
func (g *guardCore) nextRun() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runID++
	return g.runID
}

// runSync executes the evaluator on the calling goroutine. The guard's
// frame stays on the evaluator stack through commit and dependent
// notification, so a notify loop that re-enters this guard is detected as
// a cycle instead of recursing without bound. The manual-subscriber
// broadcast happens after the frame pops: subscriber callbacks must not
// contribute dependency edges to this guard's run.
func (g *guardCore) runSync(runID uint64) {
	frame := &evalFrame{guard: g, runID: runID}

	changed := false
	cyclic := runInFrame(frame, func() {
		value, err := g.invoke(context.Background())
		changed = g.settle(runID, frame.dependencies(), value, err, false)
		if changed {
			g.base.notifyDependents()
		}
	})
	if cyclic != nil {
		// The evaluator never ran, so the previous dependency set is the
		// best available answer for introspection; keep it.
		changed = g.commitFail(runID, cyclic, nil, false)
		if changed {
			observeEvaluation(string(StatusFail))
			g.base.notifyDependents()
		}
	}
	if changed {
		g.broadcast(g.snapshot())
	}
}

// startAsync flips the guard to pending (if it isn't already), then runs
// the evaluator on its own goroutine. The captured run id gates the
// commit: a superseded run executes fully — execution is observable and
// cannot be preempted — but its outcome is silently discarded.
func (g *guardCore) startAsync(runID uint64) {
	g.mu.Lock()
	wasPending := g.status == StatusPending
	g.mu.Unlock()

	if !wasPending && g.commitPending(runID) {
		g.base.notifyDependents()
		g.broadcast(g.snapshot())
	}

	go func() {
		frame := &evalFrame{guard: g, runID: runID}
		// Fresh goroutine, fresh evaluator stack: runInFrame cannot
		// report a cycle here.
		changed := false
		runInFrame(frame, func() {
			value, err := g.invoke(context.Background())
			changed = g.settle(runID, frame.dependencies(), value, err, true)
			if changed {
				g.base.notifyDependents()
			}
		})
		if changed {
			g.broadcast(g.snapshot())
		}
	}()
}

// invoke runs the evaluator, converting panics — including the FailNow
// escape hatch — into failure returns.
func (g *guardCore) invoke(ctx context.Context) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if fp, ok := r.(failPanic); ok {
				err = fp.reason
			} else {
				err = normalizeReason(r)
			}
		}
	}()
	return g.eval(ctx)
}

// settle applies the evaluator outcome under the value trichotomy:
// ErrPending keeps the guard pending, a literal false value is a sentinel
// failure with the default reason, any error is a normalized failure, and
// everything else commits ok. Returns whether the committed state changed
// and the caller should notify.
func (g *guardCore) settle(runID uint64, deps []Unit, value any, err error, rejection bool) bool {
	switch {
	case err == ErrPending:
		if g.commitPendingWithDeps(runID, deps) {
			observeEvaluation(string(StatusPending))
			return true
		}
	case err != nil:
		// An async rejection after an earlier failure keeps the earlier
		// reason as LastReason so a retry-that-fails-again shows
		// continuity; a sync failure stamps the new reason as both.
		if g.commitFail(runID, normalizeReason(err), deps, rejection) {
			observeEvaluation(string(StatusFail))
			return true
		}
	case value == false:
		if g.commitFail(runID, defaultFailReason(g.base.name), deps, false) {
			observeEvaluation(string(StatusFail))
			return true
		}
	default:
		if g.commitOK(runID, value, deps) {
			observeEvaluation(string(StatusOK))
			return true
		}
	}
	return false
}

// commitOK commits an ok verdict. Returns true when the caller should
// notify: the run is still current and status or value actually changed.
func (g *guardCore) commitOK(runID uint64, value any, deps []Unit) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if runID != g.runID {
		observeStaleRun()
		return false
	}

	changed := g.status != StatusOK || !sameValue(g.value, value)
	g.status = StatusOK
	g.value = value
	g.reason = nil
	g.lastDeps = deps
	g.updatedAt = time.Now()
	return changed
}

// commitFail commits a failure. When keepLast is set and a previous
// failure reason exists, it is preserved as LastReason; otherwise the new
// reason becomes both. A nil deps keeps the previous dependency set.
func (g *guardCore) commitFail(runID uint64, reason *Reason, deps []Unit, keepLast bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if runID != g.runID {
		observeStaleRun()
		return false
	}

	changed := g.status != StatusFail || !sameReason(g.reason, reason)
	g.status = StatusFail
	g.value = nil
	g.reason = reason.clone()
	if !keepLast || g.lastReason == nil {
		g.lastReason = g.reason
	}
	if deps != nil {
		g.lastDeps = deps
	}
	g.updatedAt = time.Now()
	if reason.Code == CodeCyclic {
		observeCycle()
	}
	return changed
}

// commitPending flips to pending without touching the dependency set.
func (g *guardCore) commitPending(runID uint64) bool {
	return g.commitPendingWithDeps(runID, nil)
}

func (g *guardCore) commitPendingWithDeps(runID uint64, deps []Unit) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if runID != g.runID {
		observeStaleRun()
		return false
	}

	changed := g.status != StatusPending
	g.status = StatusPending
	g.value = nil
	g.reason = nil
	if deps != nil {
		g.lastDeps = deps
	}
	g.updatedAt = time.Now()
	return changed
}

// adopt force-sets the guard's state from a hydration entry, bumping the
// run id so any in-flight evaluation is discarded, then notifies. The
// evaluator is never invoked.
func (g *guardCore) adopt(entry SnapshotEntry) {
	g.mu.Lock()
	g.runID++
	g.status = entry.Status
	g.value = nil
	g.reason = nil
	if entry.Status == StatusOK {
		g.value = entry.Value
	}
	if entry.Status == StatusFail {
		g.reason = entry.Reason.clone()
		g.lastReason = g.reason
	}
	g.updatedAt = time.Now()
	g.mu.Unlock()

	g.base.notifyDependents()
	g.broadcast(g.snapshot())
}

func (g *guardCore) broadcast(st State) {
	g.subMu.Lock()
	subs := make([]func(State), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.subMu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

// State returns an immutable snapshot of the guard's current state.
// Registers a dependency edge like every other read.
func (g *guardCore) State() State {
	trackRead(g, &g.base)
	return g.snapshot()
}

// snapshot returns the state without registering a dependency edge.
// Internal notification paths use this so a guard never records itself
// as its own dependent while broadcasting.
func (g *guardCore) snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Name:       g.base.Name(),
		Status:     g.status,
		Value:      g.value,
		Reason:     g.reason,
		LastReason: g.lastReason,
		UpdatedAt:  g.updatedAt,
	}
}

// Explain reports the guard's state together with its direct dependencies
// as of the last completed run. The dependency list survives failure.
func (g *guardCore) Explain() Explanation {
	g.mu.Lock()
	st := Explanation{
		Name:       g.base.Name(),
		Status:     g.status,
		Reason:     g.reason,
		LastReason: g.lastReason,
		Value:      g.value,
	}
	deps := make([]Unit, len(g.lastDeps))
	copy(deps, g.lastDeps)
	g.mu.Unlock()

	st.Dependencies = explainDependencies(deps)
	return st
}

// Subscribe adds a manual listener receiving a state snapshot after each
// committed change. Returns an unsubscribe function.
func (g *guardCore) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	g.subMu.Lock()
	if g.subs == nil {
		g.subs = make(map[uint64]func(State))
	}
	sid := nextID()
	g.subs[sid] = fn
	g.subMu.Unlock()

	return func() {
		g.subMu.Lock()
		delete(g.subs, sid)
		g.subMu.Unlock()
	}
}

// sameReason compares reasons by code and message.
func sameReason(a, b *Reason) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Code == b.Code && a.Message == b.Message
}

// Guard is a reactive computed condition. Its evaluator runs once at
// construction and again whenever a dependency notifies it; every run
// re-collects dependencies from scratch, so the graph is dynamic.
//
// The evaluator decides the verdict: returning an error fails the guard
// (a *Reason keeps its code and metadata), returning ErrPending leaves it
// pending, returning a literal false value fails it with the default
// "<name> failed" reason, and any other value commits ok.
type Guard[T any] struct {
	core *guardCore
}

// NewGuard creates a guard with a synchronous evaluator and evaluates it
// once before returning. The name is the guard's stable identity for
// hydration and introspection; an empty name derives one from the call
// site. A nil evaluator is an unrecoverable construction error.
func NewGuard[T any](name string, eval func() (T, error)) *Guard[T] {
	if eval == nil {
		panic("pulse: NewGuard requires an evaluator")
	}
	core := newGuardCore(name, func(context.Context) (any, error) {
		return liftResult(eval())
	}, false)
	return finishGuard[T](core, callSite(1))
}

// NewAsyncGuard creates a guard whose evaluator runs on its own
// goroutine. The guard flips to pending immediately; the run whose id is
// still current when the evaluator returns commits the outcome, and
// superseded runs are discarded. A nil evaluator is an unrecoverable
// construction error.
func NewAsyncGuard[T any](name string, eval func(context.Context) (T, error)) *Guard[T] {
	if eval == nil {
		panic("pulse: NewAsyncGuard requires an evaluator")
	}
	core := newGuardCore(name, func(ctx context.Context) (any, error) {
		return liftResult(eval(ctx))
	}, true)
	return finishGuard[T](core, callSite(1))
}

// liftResult erases the evaluator's type while keeping a nil error nil.
func liftResult[T any](value T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return value, nil
}

// finishGuard registers the core and either adopts pending hydration
// state for its name or runs the initial evaluation.
func finishGuard[T any](core *guardCore, site string) *Guard[T] {
	reg := DefaultRegistry()
	core.base.name = reg.register(core, site)

	if entry, ok := reg.takeHydration(core.base.name); ok {
		core.adopt(entry)
	} else {
		core.Evaluate()
	}
	return &Guard[T]{core: core}
}

// Value returns the guard's current value, or the zero value unless the
// status is ok. Registers a dependency edge.
func (g *Guard[T]) Value() T {
	v, _ := g.Get()
	return v
}

// Get returns the guard's current value and whether the status is ok.
// Registers a dependency edge.
func (g *Guard[T]) Get() (T, bool) {
	st := g.core.State()
	if st.Status != StatusOK {
		var zero T
		return zero, false
	}
	typed, ok := st.Value.(T)
	if !ok {
		var zero T
		return zero, st.Value == nil
	}
	return typed, true
}

// OK reports whether the guard's status is ok. Registers a dependency edge.
func (g *Guard[T]) OK() bool {
	return g.core.State().Status == StatusOK
}

// Failing reports whether the guard's status is fail. Registers a
// dependency edge.
func (g *Guard[T]) Failing() bool {
	return g.core.State().Status == StatusFail
}

// Pending reports whether the guard's status is pending. Registers a
// dependency edge.
func (g *Guard[T]) Pending() bool {
	return g.core.State().Status == StatusPending
}

// Reason returns the current failure reason, or nil unless the status is
// fail. Registers a dependency edge.
func (g *Guard[T]) Reason() *Reason {
	return g.core.State().Reason
}

// LastReason returns the most recent failure reason, which persists
// across pending and ok transitions. Registers a dependency edge.
func (g *Guard[T]) LastReason() *Reason {
	return g.core.State().LastReason
}

// State returns an immutable snapshot. Registers a dependency edge.
func (g *Guard[T]) State() State {
	return g.core.State()
}

// Explain reports the guard's state and direct dependencies.
func (g *Guard[T]) Explain() Explanation {
	return g.core.Explain()
}

// Subscribe adds a manual listener receiving state snapshots.
func (g *Guard[T]) Subscribe(fn func(State)) func() {
	return g.core.Subscribe(fn)
}

// Watch registers a low-level change listener.
func (g *Guard[T]) Watch(fn func()) func() {
	return g.core.Watch(fn)
}

// Evaluate manually triggers a re-evaluation.
func (g *Guard[T]) Evaluate() {
	g.core.Evaluate()
}

// ID returns the unique identifier for this guard.
func (g *Guard[T]) ID() uint64 { return g.core.ID() }

// Name returns the guard's registered name.
func (g *Guard[T]) Name() string { return g.core.Name() }

// Kind returns KindGuard.
func (g *Guard[T]) Kind() Kind { return g.core.Kind() }
