// Package pulse provides a fine-grained reactive dependency-tracking engine.
//
// Computed conditions (Guards) automatically discover which reactive
// containers (Sources, Signals, pulse Objects) and other Guards they read,
// and re-evaluate exactly when those dependencies change. Dependency
// collection happens at runtime: reading a unit during a guard evaluation
// subscribes that guard to the unit's changes, and every run re-collects
// dependencies from scratch, so the dependency graph is dynamic.
//
// # Core Types
//
// Source[T] is a reactive value container:
//
//	port := NewSource("port", 8080)
//	value := port.Get()  // Read (registers the evaluating guard, if any)
//	port.Set(9090)       // Write (notifies dependents and subscribers)
//	port.Update(func(n int) int { return n + 1 })
//
// Guard[T] is a reactive computed condition with an ok/fail/pending
// lifecycle, synchronous or asynchronous:
//
//	ready := NewGuard("db-ready", func() (bool, error) {
//	    return db.Ping() == nil, nil
//	})
//	if ready.OK() { ... }
//
// Object offers per-property reactivity over structured data:
//
//	cfg := NewObject("config", map[string]any{"host": "localhost"})
//	host := cfg.Get("host")   // Per-key dependency
//	cfg.Set("host", "0.0.0.0")
//
// # Failure Model
//
// Every guard failure converges on a structured *Reason carrying a code,
// a message, and optional metadata. Failures are never fatal: a failing
// guard keeps re-evaluating when its dependencies change. The most recent
// failure survives as LastReason across pending and ok transitions so
// consumers can show "still failing as of the last attempt" without
// flicker.
//
// # Batching
//
// Multiple updates can be batched to coalesce notifications:
//
//	Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})  // Each dependent notified once after both updates
//
// # Thread Safety
//
// All reactive primitives are safe for concurrent use. The tracking
// context is per-goroutine, so guard evaluation on one goroutine never
// observes another goroutine's evaluation stack.
package pulse
