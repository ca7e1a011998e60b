package pulse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics, registered with the default Prometheus registerer under
// the "pulse" namespace. The inspector exposes them on /metrics.
var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "guard",
		Name:      "evaluations_total",
		Help:      "Committed guard evaluation outcomes by result.",
	}, []string{"result"})

	staleRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "guard",
		Name:      "stale_runs_total",
		Help:      "Evaluation runs whose outcome was discarded because a newer run superseded them.",
	})

	cyclicFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "guard",
		Name:      "cyclic_failures_total",
		Help:      "Failures caused by cyclic dependency detection.",
	})

	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "registry",
		Name:      "registrations_total",
		Help:      "Unit registrations by kind; swaps count re-registrations under an existing identity.",
	}, []string{"kind", "op"})
)

func observeEvaluation(result string) {
	evaluationsTotal.WithLabelValues(result).Inc()
}

func observeStaleRun() {
	staleRunsTotal.Inc()
}

func observeCycle() {
	cyclicFailuresTotal.Inc()
}

func observeRegistered(kind Kind, fresh bool) {
	op := "swap"
	if fresh {
		op = "new"
	}
	registrationsTotal.WithLabelValues(string(kind), op).Inc()
}
