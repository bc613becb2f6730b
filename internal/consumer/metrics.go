package consumer

import "github.com/prometheus/client_golang/prometheus"

func opts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: "fitlog", Subsystem: "consumer", Name: name, Help: help}
}

var (
	processedCounter    = prometheus.NewCounterVec(opts("messages_processed_total", "Messages handled and committed."), []string{"topic", "event_type"})
	handlerErrorCounter = prometheus.NewCounterVec(opts("handler_errors_total", "Messages left uncommitted after a handler error."), []string{"topic", "event_type"})
	decodeErrorCounter  = prometheus.NewCounterVec(opts("decode_errors_total", "Messages skipped because their framing or headers were invalid."), []string{"topic"})

	// Lag can be read off this against the broker clock.
	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fitlog",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Produce time of the newest handled message.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if msg.Timestamp.IsZero() {
		return
	}
	lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) { decodeErrorCounter.WithLabelValues(topic).Inc() }
