// Package inspect exposes a running pulse graph over HTTP for debugging
// and operations tooling.
//
// The server reads the unit registry and serves:
//
//   - GET  /api/units                 — all registered units with state
//   - GET  /api/units/{name}          — one unit's state snapshot
//   - GET  /api/units/{name}/explain  — a guard's dependency explanation
//   - POST /api/units/{name}/evaluate — force a guard re-evaluation
//   - POST /api/units/{name}/value    — write a source or signal value
//   - GET  /api/snapshot              — hydration snapshot of settled guards
//   - GET  /ws                        — live state changes over WebSocket
//   - GET  /metrics                   — Prometheus metrics
//   - GET  /healthz                   — liveness probe
//
// Mount the handler on your own router, or run it standalone:
//
//	srv := inspect.NewServer(inspect.WithAddr(":6060"))
//	go srv.ListenAndServe(ctx)
package inspect
