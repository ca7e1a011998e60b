package pulse

import "time"

// Status is a guard's position in its lifecycle.
// Every status can transition to every other on re-evaluation; there is
// no terminal status, guards are long-lived and re-evaluate indefinitely.
type Status string

const (
	// StatusPending means evaluation has not committed a verdict yet
	// (in-flight asynchronous run, or an explicit ErrPending).
	StatusPending Status = "pending"

	// StatusOK means the last evaluation succeeded; Value is defined.
	StatusOK Status = "ok"

	// StatusFail means the last evaluation failed; Reason is defined.
	StatusFail Status = "fail"
)

// State is an immutable snapshot of a unit's current state. For sources
// and signals the status is always ok and Value carries the cell value;
// for guards the full lifecycle applies.
//
// Invariants: Value is meaningful only when Status is ok; Reason only
// when Status is fail. LastReason persists the most recent failure across
// subsequent pending and ok transitions so a consumer can show the
// previous error without flicker.
type State struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Value      any       `json:"value,omitempty"`
	Reason     *Reason   `json:"reason,omitempty"`
	LastReason *Reason   `json:"lastReason,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DependencyInfo describes one direct dependency of a guard for
// introspection. Guard dependencies additionally carry their own current
// status, and reason when failing.
type DependencyInfo struct {
	Name   string  `json:"name"`
	Kind   Kind    `json:"kind"`
	Status Status  `json:"status,omitempty"`
	Reason *Reason `json:"reason,omitempty"`
}

// Explanation is the introspection contract consumed by debugging tools:
// a guard's current state plus its direct dependencies as of the last
// completed run. The dependency list persists through failure, so a
// failing guard still reports what it was looking at when it failed.
type Explanation struct {
	Name         string           `json:"name"`
	Status       Status           `json:"status"`
	Reason       *Reason          `json:"reason,omitempty"`
	LastReason   *Reason          `json:"lastReason,omitempty"`
	Value        any              `json:"value,omitempty"`
	Dependencies []DependencyInfo `json:"dependencies"`
}

// Explainer is implemented by units that can report their dependency
// graph. Guards implement it; the inspector discovers it by assertion.
type Explainer interface {
	Explain() Explanation
}

// explainDependencies projects a dependency set into DependencyInfo
// entries, decorating guard dependencies with their live status.
func explainDependencies(deps []Unit) []DependencyInfo {
	infos := make([]DependencyInfo, 0, len(deps))
	for _, d := range deps {
		info := DependencyInfo{
			Name: d.Name(),
			Kind: d.Kind(),
		}
		if d.Kind() == KindGuard {
			st := d.State()
			info.Status = st.Status
			if st.Status == StatusFail {
				info.Reason = st.Reason
			}
		}
		infos = append(infos, info)
	}
	return infos
}
