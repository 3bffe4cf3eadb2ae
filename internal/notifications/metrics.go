package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "merchware"

var (
	eventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "events_dispatched_total",
			Help:      "Dispatched events by outcome",
		},
		[]string{"event_key", "outcome"},
	)

	tasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "tasks_enqueued_total",
			Help:      "Delivery tasks enqueued per event key",
		},
		[]string{"event_key"},
	)

	deliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "delivery_attempts_total",
			Help:      "Delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "delivery_duration_seconds",
			Help:      "Time to deliver a notification",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	queueFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_fetched_total",
			Help:      "Delivery tasks fetched from the queue before a send attempt",
		},
	)

	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_size",
			Help:      "Delivery tasks in the queue by status",
		},
		[]string{"status"},
	)
)

func recordEventDispatched(eventKey, outcome string) {
	eventsDispatched.WithLabelValues(eventKey, outcome).Inc()
}

func recordTasksEnqueued(eventKey string, count int) {
	tasksEnqueued.WithLabelValues(eventKey).Add(float64(count))
}

func recordDeliveryAttempt(channel, outcome string) {
	deliveryAttempts.WithLabelValues(channel, outcome).Inc()
}

func recordDeliveryDuration(channel string, duration time.Duration) {
	deliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func recordQueueFetched(count int) {
	queueFetched.Add(float64(count))
}

// RecordQueueStats updates queue size gauges.
func RecordQueueStats(stats *QueueStats) {
	queueSize.WithLabelValues("pending").Set(float64(stats.Pending))
	queueSize.WithLabelValues("processing").Set(float64(stats.Processing))
	queueSize.WithLabelValues("sent").Set(float64(stats.Sent))
	queueSize.WithLabelValues("failed").Set(float64(stats.Failed))
}
