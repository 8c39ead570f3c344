package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "http_requests_total",
			Help:      "Count of engine API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	blocksMutated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "blocks_mutated_total",
			Help:      "Count of block create/delete operations.",
		},
		[]string{"action"},
	)

	bookingsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "bookings_confirmed_total",
			Help:      "Count of booking confirmations by outcome.",
		},
		[]string{"outcome"},
	)

	conflictGroups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "conflict_groups_total",
			Help:      "Count of conflict groups reported to staff.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, blocksMutated, bookingsConfirmed, conflictGroups)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBlockMutation(action string) {
	blocksMutated.WithLabelValues(action).Inc()
}

func IncBookingConfirmed(outcome string) {
	bookingsConfirmed.WithLabelValues(outcome).Inc()
}

func AddConflictGroups(n int) {
	conflictGroups.Add(float64(n))
}
