package pulse

import "sync"

// Kind identifies the flavor of a reactive unit.
type Kind string

const (
	KindSource Kind = "source"
	KindSignal Kind = "signal"
	KindGuard  Kind = "guard"
	KindObject Kind = "object"
)

// Unit is a reactive entity known to the engine: a Source, Signal, Guard,
// or Object. Units have a stable identity, expose a state snapshot for
// introspection, and support low-level change watchers.
type Unit interface {
	// ID returns a unique identifier for this unit.
	// Used for deduplication during batch processing.
	ID() uint64

	// Name returns the unit's name as given at construction, or an
	// auto-generated one.
	Name() string

	// Kind returns the unit flavor (source, signal, guard, object).
	Kind() Kind

	// State returns an immutable snapshot of the unit's current state.
	State() State

	// Watch registers a change listener and returns a cancel function.
	// Watchers fire on every committed change, regardless of batching.
	Watch(fn func()) func()
}

// Trackable is a Unit that can be registered as a dependent of another
// unit and re-evaluated when that unit changes.
type Trackable interface {
	Unit

	// Notify tells the trackable that one of its dependencies changed.
	// For guards this triggers a re-evaluation.
	Notify()
}

// unitBase provides identity, dependent bookkeeping, and watcher
// management shared by all unit flavors. It is embedded in sources,
// signals, guards, and objects.
type unitBase struct {
	id   uint64
	name string
	kind Kind

	mu sync.Mutex

	// dependents are the trackables that read this unit during their
	// last evaluation. Snapshotted and cleared before each notification
	// fan-out: re-evaluating dependents re-register themselves, so stale
	// registrations never accumulate.
	dependents []Trackable

	// watchers are low-level change listeners keyed by registration ID.
	watchers map[uint64]func()
}

func newUnitBase(name string, kind Kind) unitBase {
	return unitBase{
		id:   nextID(),
		name: name,
		kind: kind,
	}
}

func (b *unitBase) ID() uint64 {
	return b.id
}

func (b *unitBase) Name() string {
	return b.name
}

func (b *unitBase) Kind() Kind {
	return b.kind
}

// addDependent registers a trackable to be notified on the next change.
// Deduplicates by ID to prevent double-notification.
func (b *unitBase) addDependent(t Trackable) {
	if t == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tid := t.ID()
	for _, existing := range b.dependents {
		if existing.ID() == tid {
			return
		}
	}
	b.dependents = append(b.dependents, t)
}

// drainDependents snapshots and clears the dependent set.
// Callers notify the snapshot outside the lock.
func (b *unitBase) drainDependents() []Trackable {
	b.mu.Lock()
	defer b.mu.Unlock()

	deps := b.dependents
	b.dependents = nil
	return deps
}

// notifyDependents snapshots-and-clears the dependent set and notifies
// each entry. Inside a batch the notifications are queued and coalesced;
// otherwise they run depth-first before this call returns.
func (b *unitBase) notifyDependents() {
	deps := b.drainDependents()
	if len(deps) == 0 {
		b.fireWatchers()
		return
	}

	if getBatchDepth() > 0 {
		for _, d := range deps {
			queuePendingNotification(d)
		}
	} else {
		for _, d := range deps {
			d.Notify()
		}
	}

	b.fireWatchers()
}

// Watch registers a change listener and returns a cancel function.
func (b *unitBase) Watch(fn func()) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	if b.watchers == nil {
		b.watchers = make(map[uint64]func())
	}
	wid := nextID()
	b.watchers[wid] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.watchers, wid)
		b.mu.Unlock()
	}
}

// fireWatchers invokes all registered watchers.
// Uses copy-before-notify to avoid holding the lock during callbacks.
func (b *unitBase) fireWatchers() {
	b.mu.Lock()
	ws := make([]func(), 0, len(b.watchers))
	for _, w := range b.watchers {
		ws = append(ws, w)
	}
	b.mu.Unlock()

	for _, w := range ws {
		w()
	}
}

// trackRead records a read edge between a unit and the currently
// evaluating guard, if any: the guard becomes a dependent of the unit
// (for notification fan-out) and the unit becomes a dependency of the
// guard's current run (for introspection).
func trackRead(u Unit, b *unitBase) {
	f := currentFrame()
	if f == nil {
		return
	}
	b.addDependent(f.guard)
	f.addDependency(u)
}
