package kafka

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainpull_kafka_published_total",
		Help: "Records written to Kafka by topic, codec and result",
	}, []string{"topic", "codec", "result"})
	publishedBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainpull_kafka_published_bytes_total",
		Help: "Encoded record bytes written to Kafka",
	}, []string{"topic"})
	publishLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainpull_kafka_publish_seconds",
		Help:    "Latency of one batch write",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	handled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainpull_kafka_handled_total",
		Help: "Consumed records by topic and outcome",
	}, []string{"topic", "outcome"})
	handleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainpull_kafka_handle_seconds",
		Help:    "Handling time per consumed record, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
	backlog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chainpull_kafka_partition_backlog",
		Help: "Fetched records waiting in a partition lane",
	}, []string{"topic", "partition"})

	metricsOnce sync.Once
)

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(published, publishedBytes, publishLatency, handled, handleLatency, backlog)
	})
}
