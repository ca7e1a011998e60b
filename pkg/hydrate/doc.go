// Package hydrate persists pulse snapshots so a process can hand its
// settled guard state to another process — or to a later incarnation of
// itself — without re-running any evaluators.
//
// The typical flow is serialize-on-one-side, hydrate-on-the-other:
//
//	snap, err := pulse.Serialize(ctx, guards...)
//	if err != nil { ... }
//	if err := store.Save(ctx, "render-123", snap); err != nil { ... }
//
// and on the receiving side, before the guards are constructed:
//
//	snap, err := store.Load(ctx, "render-123")
//	if err != nil { ... }
//	pulse.Hydrate(snap)
//
// Two backends are provided: MemStore for tests and single-process use,
// and S3Store for durable cross-process handoff.
package hydrate
