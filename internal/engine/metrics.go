package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters is the in-process tally the engine flushes into a checkpoint
// and reports in the terminal summary.
type Counters struct {
	Requests       int `json:"requests"`
	Retries        int `json:"retries"`
	RateLimitHits  int `json:"rate_limit_hits"`
	ItemsProcessed int `json:"items_processed"`
	ItemsSkipped   int `json:"items_skipped"`
	ItemsFailed    int `json:"items_failed"`
}

// Metrics are Prometheus series labeled by adapter id, registered with the
// default registry of the process running the engine (the pitchsync CLI,
// which serves no HTTP endpoint). pitchsync-admin does not import this
// package, so its /metrics does not include them.
var Metrics = struct {
	Requests      *prometheus.CounterVec
	Retries       *prometheus.CounterVec
	RateLimitHits *prometheus.CounterVec
	Processed     *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	Failed        *prometheus.CounterVec
	CircuitOpen   *prometheus.GaugeVec
}{
	Requests: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitchsync",
		Subsystem: "engine",
		Name:      "requests_total",
		Help:      "Total fetch attempts issued by the scraping engine.",
	}, []string{"adapter"}),
	Retries: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitchsync",
		Subsystem: "engine",
		Name:      "retries_total",
		Help:      "Total retries issued after a transient failure.",
	}, []string{"adapter"}),
	RateLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitchsync",
		Subsystem: "engine",
		Name:      "rate_limit_hits_total",
		Help:      "Total 429 responses observed.",
	}, []string{"adapter"}),
	Processed: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitchsync",
		Subsystem: "engine",
		Name:      "items_processed_total",
		Help:      "Total normalized match records produced.",
	}, []string{"adapter"}),
	Skipped: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitchsync",
		Subsystem: "engine",
		Name:      "items_skipped_total",
		Help:      "Total records skipped by the adapter's data policy.",
	}, []string{"adapter"}),
	Failed: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pitchsync",
		Subsystem: "engine",
		Name:      "items_failed_total",
		Help:      "Total units that exhausted retries and were logged to failed_items.",
	}, []string{"adapter"}),
	CircuitOpen: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pitchsync",
		Subsystem: "engine",
		Name:      "circuit_open",
		Help:      "1 when an adapter's fetch circuit breaker is open, else 0.",
	}, []string{"adapter"}),
}
