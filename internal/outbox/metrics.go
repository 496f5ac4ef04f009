package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	syncedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "outbox",
		Name:      "items_synced_total",
		Help:      "Number of outbox items successfully replayed to the health store.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "outbox",
		Name:      "items_failed_total",
		Help:      "Number of outbox item replay attempts that failed.",
	})

	drainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mealplan",
		Subsystem: "outbox",
		Name:      "drain_duration_seconds",
		Help:      "Time spent fetching, replaying, and pruning one outbox drain.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mealplan",
		Subsystem: "outbox",
		Name:      "pending_items",
		Help:      "Outbox items currently awaiting delivery (pending or failed).",
	})
)

func init() {
	prometheus.MustRegister(syncedCounter, failedCounter, drainDuration, pendingGauge)
}
