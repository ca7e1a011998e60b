package pulse

// Batch groups multiple unit updates into a single notification phase.
// All dependents affected within the batch function are collected,
// deduplicated, and notified once when the outermost batch exits.
//
// Batches can be nested. Notifications only fire when the outermost batch
// completes. Manual subscribers and watchers still fire synchronously at
// change time; only dependent re-evaluation is deferred.
//
// Example:
//
//	Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	    age.Set(30)
//	})
//	// Each dependent guard re-evaluates once with all three changes
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			processPendingNotifications()
		}
	}()

	fn()
}

// processPendingNotifications deduplicates and notifies all pending dependents.
func processPendingNotifications() {
	pending := drainPendingNotifications()
	if len(pending) == 0 {
		return
	}

	// Deduplicate by unit ID
	seen := make(map[uint64]bool, len(pending))
	unique := make([]Trackable, 0, len(pending))

	for _, t := range pending {
		id := t.ID()
		if !seen[id] {
			seen[id] = true
			unique = append(unique, t)
		}
	}

	for _, t := range unique {
		t.Notify()
	}
}
