// Package observability holds the Prometheus collectors shared across the service.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitlog",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write.",
	})
	activityMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "domain",
		Name:      "activity_mutations_total",
		Help:      "Activity writes grouped by operation (create, update, delete).",
	}, []string{"operation"})
	profileMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "domain",
		Name:      "profile_mutations_total",
		Help:      "Profile writes grouped by operation (create, update, delete).",
	}, []string{"operation"})
	statisticsComputed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "domain",
		Name:      "statistics_computed_total",
		Help:      "Statistics requests grouped by whether any past activity was available.",
	}, []string{"available"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests by route pattern, method and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, activityMutations, profileMutations, statisticsComputed, httpDuration)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordActivityMutation counts an activity write.
func RecordActivityMutation(operation string) {
	activityMutations.WithLabelValues(operation).Inc()
}

// RecordProfileMutation counts a profile write.
func RecordProfileMutation(operation string) {
	profileMutations.WithLabelValues(operation).Inc()
}

// RecordStatistics counts a statistics computation.
func RecordStatistics(available bool) {
	statisticsComputed.WithLabelValues(strconv.FormatBool(available)).Inc()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
