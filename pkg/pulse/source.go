package pulse

import "sync"

// Source is a primitive mutable reactive cell. Reading it during a guard
// evaluation registers a dependency edge; writing it notifies every
// dependent and manual subscriber, gated by the configured equality
// function (default: strict equality for comparable types).
//
// Sources are purely synchronous: Set returns only after all depth-first
// notifications triggered by the change have completed, unless the write
// happens inside a Batch scope.
type Source[T any] struct {
	base unitBase

	mu    sync.RWMutex
	value T

	// equal gates notification. If nil, uses default equality checking.
	equal func(T, T) bool

	subMu sync.Mutex
	subs  map[uint64]func(T)
}

// NewSource creates a source with the given name and initial value and
// registers it in the default registry. An empty name derives a stable
// identity from the call site.
func NewSource[T any](name string, initial T) *Source[T] {
	s := &Source[T]{
		base:  newUnitBase(name, KindSource),
		value: initial,
	}
	s.base.name = DefaultRegistry().register(s, callSite(1))
	return s
}

// Get returns the current value. If invoked while a guard is evaluating,
// the guard is registered as a dependent of this source and the source is
// recorded as a dependency of the guard's current run.
func (s *Source[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track after releasing the value lock to prevent deadlock
	trackRead(s, &s.base)

	return value
}

// Peek returns the current value without registering a dependency.
func (s *Source[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value. If the equality function reports a change, all
// manual subscribers are invoked with the new value and every dependent
// is notified. The dependent set is snapshotted and cleared before the
// fan-out: re-evaluating dependents re-register themselves during their
// own re-run.
func (s *Source[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.notifySubscribers(value)
		s.base.notifyDependents()
	}
}

// Update is sugar for Set(fn(current)).
func (s *Source[T]) Update(fn func(T) T) {
	s.mu.Lock()
	oldValue := s.value
	newValue := fn(oldValue)
	changed := !s.equals(oldValue, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.notifySubscribers(newValue)
		s.base.notifyDependents()
	}
}

// Subscribe adds a manual listener invoked with each new value.
// Returns an unsubscribe function.
func (s *Source[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]func(T))
	}
	sid := nextID()
	s.subs[sid] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, sid)
		s.subMu.Unlock()
	}
}

// WithEquals configures a custom equality function and returns the source.
// Useful for types where reflect.DeepEqual is too expensive or has the
// wrong semantics.
func (s *Source[T]) WithEquals(fn func(T, T) bool) *Source[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this source.
func (s *Source[T]) ID() uint64 { return s.base.ID() }

// Name returns the source's registered name.
func (s *Source[T]) Name() string { return s.base.Name() }

// Kind returns KindSource.
func (s *Source[T]) Kind() Kind { return s.base.Kind() }

// Watch registers a low-level change listener.
func (s *Source[T]) Watch(fn func()) func() { return s.base.Watch(fn) }

// State returns a snapshot of the source. Value cells are always ok.
func (s *Source[T]) State() State {
	return State{
		Name:   s.base.Name(),
		Status: StatusOK,
		Value:  s.Peek(),
	}
}

// GetAny returns the current value as an any. Reads made inside an
// evaluation register a dependency edge like Get; outside one, tracking
// is a no-op. Used by the composition helpers and the inspector boundary.
func (s *Source[T]) GetAny() any {
	return s.Get()
}

// SetAny sets the value from an untyped input.
// Returns ErrNotSource-compatible type errors when the value doesn't match.
func (s *Source[T]) SetAny(value any) error {
	typed, ok := value.(T)
	if !ok {
		return Reasonf(CodeError, "%s: cannot assign %T", s.base.Name(), value)
	}
	s.Set(typed)
	return nil
}

func (s *Source[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// notifySubscribers invokes manual listeners with the new value.
// Uses copy-before-notify to avoid holding the lock during callbacks.
func (s *Source[T]) notifySubscribers(value T) {
	s.subMu.Lock()
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}
