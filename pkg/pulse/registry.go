package pulse

import (
	"fmt"
	"runtime"
	"sync"
)

// Registry is global unit bookkeeping for introspection tooling and
// hot-reload identity stability. Re-registration under an identity swaps
// the underlying unit inside the existing Handle, so references captured
// by other code stay valid across code edits.
type Registry struct {
	mu        sync.Mutex
	handles   map[string]*Handle
	order     []string
	listeners map[uint64]func(*Handle)

	// hydration holds force-set state waiting for a guard of the matching
	// name to be constructed.
	hydration map[string]SnapshotEntry
}

// NewRegistry creates an empty registry with explicit lifecycle,
// independent of the package default.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
	}
}

var (
	defaultRegistryMu sync.Mutex
	defaultRegistry   *Registry
)

// DefaultRegistry returns the process-wide registry that constructors
// register into.
func DefaultRegistry() *Registry {
	defaultRegistryMu.Lock()
	defer defaultRegistryMu.Unlock()
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// ResetRegistry replaces the default registry with a fresh one.
// Intended for test isolation.
func ResetRegistry() {
	defaultRegistryMu.Lock()
	defaultRegistry = NewRegistry()
	defaultRegistryMu.Unlock()
}

// register resolves a stable identity for the unit — its given name, or
// the call site when unnamed — and installs it. If the identity already
// has a live entry the existing handle's underlying unit is swapped in
// place rather than creating a duplicate. Returns the resolved identity.
func (r *Registry) register(u Unit, site string) string {
	name := u.Name()
	if name == "" {
		name = site
	}

	r.mu.Lock()
	h, existing := r.handles[name]
	if existing {
		h.swap(u)
	} else {
		h = &Handle{identity: name, unit: u}
		r.handles[name] = h
		r.order = append(r.order, name)
	}
	listeners := make([]func(*Handle), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	observeRegistered(u.Kind(), !existing)

	for _, fn := range listeners {
		fn(h)
	}
	return name
}

// Get returns the handle registered under name.
func (r *Registry) Get(name string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[name]
	return h, ok
}

// All returns every registered handle in registration order.
func (r *Registry) All() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]*Handle, 0, len(r.order))
	for _, name := range r.order {
		handles = append(handles, r.handles[name])
	}
	return handles
}

// OnRegister adds a listener invoked with the handle on every
// registration, including in-place swaps. Returns a cancel function.
func (r *Registry) OnRegister(fn func(*Handle)) func() {
	if fn == nil {
		return func() {}
	}

	r.mu.Lock()
	if r.listeners == nil {
		r.listeners = make(map[uint64]func(*Handle))
	}
	lid := nextID()
	r.listeners[lid] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, lid)
		r.mu.Unlock()
	}
}

// Reset clears all handles, listeners, and pending hydration state.
// Intended for test setup.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.handles = make(map[string]*Handle)
	r.order = nil
	r.listeners = nil
	r.hydration = nil
	r.mu.Unlock()
}

// setHydration installs snapshot entries for guards constructed later.
func (r *Registry) setHydration(snapshot Snapshot) {
	r.mu.Lock()
	if r.hydration == nil {
		r.hydration = make(map[string]SnapshotEntry, len(snapshot))
	}
	for name, entry := range snapshot {
		r.hydration[name] = entry
	}
	r.mu.Unlock()
}

// takeHydration consumes the pending entry for name, if any. Consuming
// keeps later re-registrations under the same identity (hot reload)
// re-running their evaluator instead of adopting stale state forever.
func (r *Registry) takeHydration(name string) (SnapshotEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.hydration[name]
	if ok {
		delete(r.hydration, name)
	}
	return entry, ok
}

// Handle is a stable indirection to the current unit registered under an
// identity. Operations always delegate to the latest underlying unit, so
// replacing the unit (after a code edit) never invalidates a Handle some
// other code already captured.
type Handle struct {
	identity string

	mu   sync.RWMutex
	unit Unit
}

func (h *Handle) swap(u Unit) {
	h.mu.Lock()
	h.unit = u
	h.mu.Unlock()
}

// Unit returns the current underlying unit.
func (h *Handle) Unit() Unit {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.unit
}

// Name returns the handle's identity, which outlives unit swaps.
func (h *Handle) Name() string { return h.identity }

// ID returns the current underlying unit's ID.
func (h *Handle) ID() uint64 { return h.Unit().ID() }

// Kind returns the current underlying unit's kind.
func (h *Handle) Kind() Kind { return h.Unit().Kind() }

// State returns the current underlying unit's state snapshot.
func (h *Handle) State() State { return h.Unit().State() }

// Watch registers a change listener on the current underlying unit.
func (h *Handle) Watch(fn func()) func() { return h.Unit().Watch(fn) }

// Explain returns the dependency explanation when the underlying unit is
// a guard; ErrNotGuard otherwise.
func (h *Handle) Explain() (Explanation, error) {
	if ex, ok := h.Unit().(Explainer); ok {
		return ex.Explain(), nil
	}
	return Explanation{}, ErrNotGuard
}

// Evaluate forces a re-evaluation when the underlying unit is a guard;
// ErrNotGuard otherwise.
func (h *Handle) Evaluate() error {
	type evaluator interface{ Evaluate() }
	if ev, ok := h.Unit().(evaluator); ok {
		ev.Evaluate()
		return nil
	}
	return ErrNotGuard
}

// SetValue writes a value when the underlying unit is a source or signal;
// ErrNotSource otherwise.
func (h *Handle) SetValue(value any) error {
	type valueSetter interface{ SetAny(any) error }
	switch u := h.Unit().(type) {
	case valueSetter:
		return u.SetAny(value)
	case *Signal:
		u.Set(value)
		return nil
	default:
		return ErrNotSource
	}
}

// callSite returns a deterministic "file:line" identity for the caller at
// the given skip depth. Results are cached by program counter so repeated
// registrations from the same code location resolve without reformatting.
func callSite(skip int) string {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return fmt.Sprintf("unit-%d", nextID())
	}
	if cached, ok := callSiteCache.Load(pcs[0]); ok {
		return cached.(string)
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	site := fmt.Sprintf("%s:%d", frame.File, frame.Line)
	callSiteCache.Store(pcs[0], site)
	return site
}

var callSiteCache sync.Map
