package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mealplan",
		Subsystem: "syncer",
		Name:      "last_sync_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful sync pass.",
	})
	activityLoggedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mealplan",
		Subsystem: "tracking",
		Name:      "last_activity_logged_timestamp_seconds",
		Help:      "Unix timestamp of the most recent manual activity log.",
	})
)

func init() {
	prometheus.MustRegister(syncCompletedGauge, activityLoggedGauge)
}

// RecordSyncCompleted updates the sync watermark gauge.
func RecordSyncCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	syncCompletedGauge.Set(float64(ts.Unix()))
}

// RecordActivityLogged updates the manual-activity watermark gauge.
func RecordActivityLogged(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityLoggedGauge.Set(float64(ts.Unix()))
}
