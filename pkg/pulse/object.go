package pulse

import (
	"fmt"
	"sync"
)

// Object is a deep reactive wrapper over structured data. Go has no
// transparent property interception, so the contract is an explicit
// accessor API: every Get during an active guard evaluation registers a
// per-property dependency, and every Set triggers notification gated by
// a value-change check.
//
// One Signal is allocated lazily per accessed property. Properties whose
// value is a nested map[string]any are wrapped in a child Object on first
// access and cached by key; the cache entry is invalidated only when the
// key is reassigned — in-place mutation of nested data goes through the
// nested wrapper itself. Writes bubble up the parent chain, so watchers
// on the top-level object observe nested mutations.
type Object struct {
	base   unitBase
	parent *Object

	mu       sync.Mutex
	target   map[string]any
	props    map[string]*Signal
	children map[string]*Object
}

// NewObject wraps target and registers the object in the default
// registry. A nil target starts empty.
func NewObject(name string, target map[string]any) *Object {
	if target == nil {
		target = make(map[string]any)
	}
	o := &Object{
		base:   newUnitBase(name, KindObject),
		target: target,
	}
	o.base.name = DefaultRegistry().register(o, callSite(1))
	return o
}

// newChildObject wraps a nested map without separate registration; the
// child is introspected through its parent.
func newChildObject(parent *Object, key string, target map[string]any) *Object {
	return &Object{
		base:   newUnitBase(parent.base.Name()+"."+key, KindObject),
		parent: parent,
		target: target,
	}
}

// Get returns the live value of a property, registering a per-property
// dependency when a guard is evaluating. Nested map values are returned
// as child *Objects.
func (o *Object) Get(key string) any {
	sig := o.prop(key)
	value := sig.Get()

	if nested, ok := value.(map[string]any); ok {
		return o.child(key, nested)
	}
	return value
}

// Object returns the child wrapper for a nested map property, or nil if
// the property is absent or not a map. Registers the same per-property
// dependency as Get.
func (o *Object) Object(key string) *Object {
	child, _ := o.Get(key).(*Object)
	return child
}

// Set updates a property and notifies: the per-property signal, the
// object as a unit, and every ancestor object. The whole update path runs
// inside a batch so dependents touched through several of those channels
// re-evaluate once.
func (o *Object) Set(key string, value any) {
	sig := o.prop(key)
	if sig.equals(sig.Peek(), value) {
		return
	}

	Batch(func() {
		o.mu.Lock()
		o.target[key] = value
		// A reassigned key invalidates the cached child wrapper; it is
		// rewrapped around the new value on next access.
		delete(o.children, key)
		o.mu.Unlock()

		sig.Set(value)
		o.touch()
	})
}

// Update is sugar for Set(key, fn(current)).
func (o *Object) Update(key string, fn func(any) any) {
	o.Set(key, fn(o.prop(key).Peek()))
}

// Has reports whether the property exists, registering a whole-object
// dependency.
func (o *Object) Has(key string) bool {
	trackRead(o, &o.base)
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.target[key]
	return ok
}

// Keys returns the property names, registering a whole-object dependency.
func (o *Object) Keys() []string {
	trackRead(o, &o.base)
	o.mu.Lock()
	defer o.mu.Unlock()

	keys := make([]string, 0, len(o.target))
	for k := range o.target {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the property count, registering a whole-object dependency.
func (o *Object) Len() int {
	trackRead(o, &o.base)
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.target)
}

// Snapshot returns a deep plain copy of the backing data, registering a
// whole-object dependency.
func (o *Object) Snapshot() map[string]any {
	trackRead(o, &o.base)
	o.mu.Lock()
	defer o.mu.Unlock()
	return deepCopy(o.target)
}

// Subscribe adds a listener invoked after every change to this object or
// any nested object beneath it. Returns an unsubscribe function.
func (o *Object) Subscribe(fn func()) func() {
	return o.base.Watch(fn)
}

// ID returns the unique identifier for this object.
func (o *Object) ID() uint64 { return o.base.ID() }

// Name returns the object's registered name.
func (o *Object) Name() string { return o.base.Name() }

// Kind returns KindObject.
func (o *Object) Kind() Kind { return o.base.Kind() }

// Watch registers a low-level change listener.
func (o *Object) Watch(fn func()) func() { return o.base.Watch(fn) }

// State returns a snapshot of the object. Value cells are always ok.
func (o *Object) State() State {
	o.mu.Lock()
	value := deepCopy(o.target)
	o.mu.Unlock()

	return State{
		Name:   o.base.Name(),
		Status: StatusOK,
		Value:  value,
	}
}

// prop returns the property's signal, allocating it on first access.
func (o *Object) prop(key string) *Signal {
	o.mu.Lock()
	defer o.mu.Unlock()

	if sig, ok := o.props[key]; ok {
		return sig
	}
	if o.props == nil {
		o.props = make(map[string]*Signal)
	}
	sig := NewSignal(fmt.Sprintf("%s.%s", o.base.Name(), key), o.target[key])
	o.props[key] = sig
	return sig
}

// child returns the cached wrapper for a nested map, allocating it on
// first access.
func (o *Object) child(key string, nested map[string]any) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.children[key]; ok {
		return c
	}
	if o.children == nil {
		o.children = make(map[string]*Object)
	}
	c := newChildObject(o, key, nested)
	o.children[key] = c
	return c
}

// touch notifies the object as a unit and bubbles up the parent chain.
func (o *Object) touch() {
	o.base.notifyDependents()
	if o.parent != nil {
		o.parent.touch()
	}
}

// deepCopy clones a plain data tree, descending into nested maps.
func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopy(nested)
			continue
		}
		out[k] = v
	}
	return out
}
