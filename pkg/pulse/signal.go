package pulse

import "sync"

// Signal is the low-level reactive value cell. It carries an untyped
// value with equality-gated notification and is the building block under
// pulse Objects, which allocate one Signal per accessed property.
//
// Unlike Source, signals are not registered in a Registry at creation;
// use Source for standalone application state.
type Signal struct {
	base unitBase

	mu    sync.RWMutex
	value any

	// equal is the equality function gating notification.
	// If nil, uses default equality checking.
	equal func(any, any) bool

	subMu sync.Mutex
	subs  map[uint64]func(any)
}

// NewSignal creates a signal with the given name and initial value.
func NewSignal(name string, initial any) *Signal {
	return &Signal{
		base:  newUnitBase(name, KindSignal),
		value: initial,
	}
}

// Get returns the current value. If invoked while a guard is evaluating,
// the guard is registered as a dependent of this signal and the signal is
// recorded as a dependency of the guard's current run.
func (s *Signal) Get() any {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track after releasing the value lock to prevent deadlock
	trackRead(s, &s.base)

	return value
}

// Peek returns the current value without registering a dependency.
func (s *Signal) Peek() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies dependents and subscribers,
// gated by the signal's equality function.
func (s *Signal) Set(value any) {
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
func (s *Signal) Update(fn func(any) any) {
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
func (s *Signal) Subscribe(fn func(any)) func() {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]func(any))
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

// WithEquals configures a custom equality function and returns the signal.
func (s *Signal) WithEquals(fn func(any, any) bool) *Signal {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal) ID() uint64 { return s.base.ID() }

// Name returns the signal's name.
func (s *Signal) Name() string { return s.base.Name() }

// Kind returns KindSignal.
func (s *Signal) Kind() Kind { return s.base.Kind() }

// Watch registers a low-level change listener.
func (s *Signal) Watch(fn func()) func() { return s.base.Watch(fn) }

// State returns a snapshot of the signal. Value cells are always ok.
func (s *Signal) State() State {
	return State{
		Name:   s.base.Name(),
		Status: StatusOK,
		Value:  s.Peek(),
	}
}

func (s *Signal) equals(a, b any) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// notifySubscribers invokes manual listeners with the new value.
// Uses copy-before-notify to avoid holding the lock during callbacks.
func (s *Signal) notifySubscribers(value any) {
	s.subMu.Lock()
	subs := make([]func(any), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}
