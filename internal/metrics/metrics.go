package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "bookings_created_total",
			Help:      "Bookings created by resource type.",
		},
		[]string{"resource_type"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected, by conflict kind.",
		},
		[]string{"kind"},
	)

	lockAcquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "slot_lock_acquisitions_total",
			Help:      "Slot lock acquisition attempts by outcome.",
		},
		[]string{"outcome"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "status_transitions_total",
			Help:      "Lifecycle transitions by entity and target status.",
		},
		[]string{"entity", "status"},
	)

	expirySweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reserva",
			Name:      "expiry_sweep_duration_seconds",
			Help:      "Duration of expiry reconciliation sweeps.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	expirySweepTransitions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "expiry_sweep_transitions_total",
			Help:      "Entities transitioned by the expiry reconciler.",
		},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			bookingConflicts,
			lockAcquisitions,
			transitions,
			expirySweepDuration,
			expirySweepTransitions,
			notificationsSent,
		)
	})
}

// IncBookingCreated increments the created counter for a resource type label.
func IncBookingCreated(resourceType string) {
	bookingsCreated.WithLabelValues(resourceType).Inc()
}

// IncBookingConflict increments the conflict counter for a kind
// ("lock_contention" or "period_overlap").
func IncBookingConflict(kind string) {
	bookingConflicts.WithLabelValues(kind).Inc()
}

// IncLockAcquisition increments the lock counter for an outcome
// ("granted", "contended" or "error").
func IncLockAcquisition(outcome string) {
	lockAcquisitions.WithLabelValues(outcome).Inc()
}

// IncTransition increments the transition counter for an entity/status pair.
func IncTransition(entity, status string) {
	transitions.WithLabelValues(entity, status).Inc()
}

// ObserveExpirySweep records one reconciliation sweep.
func ObserveExpirySweep(d time.Duration, transitioned int) {
	expirySweepDuration.Observe(d.Seconds())
	expirySweepTransitions.Add(float64(transitioned))
}

// IncNotification increments the notification counter for an outcome
// ("sent", "retried", "dead_letter").
func IncNotification(outcome string) {
	notificationsSent.WithLabelValues(outcome).Inc()
}
