package outbox

import "github.com/prometheus/client_golang/prometheus"

var eventLabels = []string{"topic", "event_type"}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: "fitlog", Subsystem: subsystem, Name: name, Help: help})
}

func counterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "fitlog", Subsystem: subsystem, Name: name, Help: help}, labels)
}

// Dispatcher side.
var (
	deliveredCounter = counter("outbox", "events_delivered_total", "Outbox events published to Kafka.")
	failedCounter    = counter("outbox", "events_failed_total", "Outbox events whose publish failed.")
	dlqCounter       = counterVec("outbox", "events_dlq_total", "Outbox events parked in the dead-letter table.", []string{"topic"})
	batchDuration    = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitlog",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of one claim, publish and mark cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

// Dead-letter side.
var (
	dlqProcessedCounter   = counterVec("dlq", "messages_processed_total", "Dead letters whose replay reached Kafka.", eventLabels)
	dlqRequeuedCounter    = counterVec("dlq", "messages_requeued_total", "Dead letters copied back into the outbox.", eventLabels)
	dlqQuarantinedCounter = counterVec("dlq", "messages_quarantined_total", "Dead letters that ran out of attempts.", eventLabels)
	dlqRetryCounter       = counterVec("dlq", "retry_scheduled_total", "Backoff reschedules of dead letters.", eventLabels)
	dlqBacklogGauge       = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitlog",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Dead letters not yet quarantined.",
	})
)

func init() {
	prometheus.MustRegister(
		deliveredCounter, failedCounter, dlqCounter, batchDuration,
		dlqProcessedCounter, dlqRequeuedCounter, dlqQuarantinedCounter, dlqRetryCounter, dlqBacklogGauge,
	)
}

func recordDLQProcessed(topic, eventType string) {
	dlqProcessedCounter.WithLabelValues(topic, eventType).Inc()
}

func recordDLQRequeued(entry dlqEntry) {
	dlqRequeuedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
	dlqRetryCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
}

func recordDLQQuarantined(entry dlqEntry) {
	dlqQuarantinedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
}
