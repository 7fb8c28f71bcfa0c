package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	jobs         *prometheus.CounterVec
	quarantine   *prometheus.CounterVec
	enqueued     *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
}

var (
	recorder     *Recorder
	recorderOnce sync.Once
)

// New returns the process-wide Prometheus metrics recorder.
func New() *Recorder {
	recorderOnce.Do(func() {
		recorder = NewWithRegisterer(prometheus.DefaultRegisterer)
	})
	return recorder
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpull_snapshots_sent_total",
				Help: "Total number of snapshots sent to backend",
			},
			[]string{"backend", "ticker"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainpull_last_price",
				Help: "Last scraped underlying price for a ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpull_scrape_jobs_total",
				Help: "Scrape jobs by outcome",
			},
			[]string{"result"},
		),
		quarantine: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpull_quarantine_score_total",
				Help: "Quarantine score added by rule",
			},
			[]string{"rule"},
		),
		enqueued: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpull_dispatch_tickers_total",
				Help: "Tickers handled by the dispatcher",
			},
			[]string{"status"},
		),
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainpull_queue_depth",
				Help: "Messages in the work queue by state",
			},
			[]string{"state"},
		),
	}
}

// RecordMessageSent records a snapshot sent to a backend.
func (r *Recorder) RecordMessageSent(backend, ticker string) {
	r.messagesSent.WithLabelValues(backend, ticker).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a ticker.
func (r *Recorder) RecordLastPrice(ticker string, price float64) {
	r.lastPrice.WithLabelValues(ticker).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordJob records the outcome of a scrape job.
func (r *Recorder) RecordJob(result string) {
	r.jobs.WithLabelValues(result).Inc()
}

// RecordQuarantineScore records score added under a rule.
func (r *Recorder) RecordQuarantineScore(rule string, score int64) {
	r.quarantine.WithLabelValues(rule).Add(float64(score))
}

// RecordEnqueued records one dispatch cycle.
func (r *Recorder) RecordEnqueued(count int, skipped int) {
	r.enqueued.WithLabelValues("enqueued").Add(float64(count))
	r.enqueued.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordQueueDepth records pending, retrying and dead-lettered message counts.
func (r *Recorder) RecordQueueDepth(pending, retrying, dead int64) {
	r.queueDepth.WithLabelValues("pending").Set(float64(pending))
	r.queueDepth.WithLabelValues("retrying").Set(float64(retrying))
	r.queueDepth.WithLabelValues("dead").Set(float64(dead))
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordMessageSent(string, string)     {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLastPrice(string, float64)      {}
func (Nop) RecordLatency(string, float64)        {}
func (Nop) RecordJob(string)                     {}
func (Nop) RecordQuarantineScore(string, int64)  {}
func (Nop) RecordEnqueued(int, int)              {}
func (Nop) RecordQueueDepth(int64, int64, int64) {}
