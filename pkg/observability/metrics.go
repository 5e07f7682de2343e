package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transportPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waku_a2a_transport_publish_total",
			Help: "Total number of transport Publish calls, by backend and outcome",
		},
		[]string{"backend", "status"},
	)

	transportPollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waku_a2a_transport_poll_duration_seconds",
			Help:    "Transport Poll call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	reliabilityRetransmitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waku_a2a_reliability_retransmit_total",
			Help: "Total number of SDS retransmissions",
		},
		[]string{"topic"},
	)

	reliabilityUndeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waku_a2a_reliability_undelivered_total",
			Help: "Total number of sends that exhausted max_attempts without an ack",
		},
		[]string{"topic"},
	)

	reliabilityDedupDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waku_a2a_reliability_dedup_dropped_total",
			Help: "Total number of inbound payloads dropped as duplicates",
		},
		[]string{"topic"},
	)

	nodeTasksSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waku_a2a_node_tasks_sent_total",
			Help: "Total number of tasks sent by a node, by outcome",
		},
		[]string{"outcome"},
	)

	nodeTasksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waku_a2a_node_tasks_received_total",
			Help: "Total number of tasks surfaced to a node, by envelope kind",
		},
		[]string{"envelope"},
	)

	nodeKnownPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "waku_a2a_node_known_peers",
			Help: "Number of distinct peer pubkeys currently known from discovery",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers every messaging-runtime metric with the
// default Prometheus registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			transportPublishTotal,
			transportPollDuration,
			reliabilityRetransmitTotal,
			reliabilityUndeliveredTotal,
			reliabilityDedupDroppedTotal,
			nodeTasksSentTotal,
			nodeTasksReceivedTotal,
			nodeKnownPeers,
		)
	})
}

// MetricsHandler returns an HTTP handler exposing the metrics above in
// the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTransportPublish records the outcome of one Publish call.
func RecordTransportPublish(backend, status string) {
	transportPublishTotal.WithLabelValues(backend, status).Inc()
}

// ObserveTransportPoll records how long one Poll call took.
func ObserveTransportPoll(backend string, duration time.Duration) {
	transportPollDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordRetransmit records one SDS retransmission on topic.
func RecordRetransmit(topic string) {
	reliabilityRetransmitTotal.WithLabelValues(topic).Inc()
}

// RecordUndelivered records one send that exhausted max_attempts.
func RecordUndelivered(topic string) {
	reliabilityUndeliveredTotal.WithLabelValues(topic).Inc()
}

// RecordDedupDropped records one inbound payload dropped as a duplicate.
func RecordDedupDropped(topic string) {
	reliabilityDedupDroppedTotal.WithLabelValues(topic).Inc()
}

// RecordTaskSent records the outcome of one SendTask/Respond call.
func RecordTaskSent(outcome string) {
	nodeTasksSentTotal.WithLabelValues(outcome).Inc()
}

// RecordTaskReceived records one task surfaced by PollTasks, tagged by
// whether it arrived plaintext or encrypted.
func RecordTaskReceived(envelopeKind string) {
	nodeTasksReceivedTotal.WithLabelValues(envelopeKind).Inc()
}

// SetKnownPeers sets the current count of discovered peers.
func SetKnownPeers(count int) {
	nodeKnownPeers.Set(float64(count))
}
