package reservation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reserveOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmb",
			Subsystem: "reservation",
			Name:      "outcomes_total",
			Help:      "Reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	reserveAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pmb",
			Subsystem: "reservation",
			Name:      "attempts",
			Help:      "Atomic units executed per reservation request.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	reserveConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pmb",
			Subsystem: "reservation",
			Name:      "conflicts_total",
			Help:      "Concurrency conflicts seen by the reservation engine.",
		},
	)

	reserveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pmb",
			Subsystem: "reservation",
			Name:      "errors_total",
			Help:      "Reservation requests that failed with an infrastructure error.",
		},
	)
)
