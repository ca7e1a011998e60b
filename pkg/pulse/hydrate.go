package pulse

import "context"

// SnapshotEntry is the plain-data projection of one settled guard:
// status, value, and reason, with all behavior stripped. It is the unit
// of the hydration protocol between a server render and a client.
type SnapshotEntry struct {
	Status Status  `json:"status"`
	Value  any     `json:"value,omitempty"`
	Reason *Reason `json:"reason,omitempty"`
}

// Snapshot maps guard names to their serialized state. It round-trips
// through encoding/json.
type Snapshot map[string]SnapshotEntry

// Serialize awaits each guard settling (leaving pending) and produces a
// snapshot keyed by guard name. Guards must be named for the snapshot to
// be matchable on the other side. The context bounds the wait for guards
// whose evaluation never resolves.
func Serialize(ctx context.Context, guards ...Unit) (Snapshot, error) {
	snapshot := make(Snapshot, len(guards))
	for _, g := range guards {
		st, err := waitSettled(ctx, g)
		if err != nil {
			return nil, err
		}
		snapshot[g.Name()] = SnapshotEntry{
			Status: st.Status,
			Value:  st.Value,
			Reason: st.Reason,
		}
	}
	return snapshot, nil
}

// waitSettled blocks until the unit's status is not pending.
func waitSettled(ctx context.Context, u Unit) (State, error) {
	if st := u.State(); st.Status != StatusPending {
		return st, nil
	}

	ch := make(chan struct{}, 1)
	cancel := u.Watch(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		if st := u.State(); st.Status != StatusPending {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return State{}, ctx.Err()
		}
	}
}

// Hydrate applies a snapshot to the default registry. See HydrateRegistry.
func Hydrate(snapshot Snapshot) {
	HydrateRegistry(DefaultRegistry(), snapshot)
}

// HydrateRegistry force-sets guard state from a precomputed snapshot
// without running any evaluator. Guards already registered under a
// matching name adopt their entry immediately (bumping the run id so any
// in-flight evaluation is discarded) and notify dependents; entries with
// no matching guard yet are held so a guard constructed later under that
// name adopts the entry at construction instead of evaluating.
//
// Hydration is idempotent: applying the same snapshot again re-commits
// the same state and never executes an evaluator as a side effect of
// matching.
func HydrateRegistry(r *Registry, snapshot Snapshot) {
	r.setHydration(snapshot)
	for name, entry := range snapshot {
		h, ok := r.Get(name)
		if !ok {
			continue
		}
		core, ok := h.Unit().(*guardCore)
		if !ok {
			continue
		}
		// Consumed so a later hot-reload re-registration re-evaluates
		// instead of adopting stale state.
		r.takeHydration(name)
		core.adopt(entry)
	}
}
