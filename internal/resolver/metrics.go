package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "lbfeed_resolver_"

// Metrics groups the resolver's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cacheLookups  *prometheus.CounterVec
	externalCalls *prometheus.CounterVec
	batches       *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	callLatency   prometheus.Histogram
	batchLatency  prometheus.Histogram
}

// NewMetrics creates the resolver collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "cache_lookups_total",
			Help: "Release store lookups by result (hit or miss)",
		}, []string{"result"}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "external_calls_total",
			Help: "Metadata service calls by outcome error kind (none on success)",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "batches_total",
			Help: "Completed batches by outcome error kind (none on success)",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "queue_depth",
			Help: "Batches waiting in the resolver queue",
		}),
		callLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "external_call_seconds",
			Help:    "Latency of metadata service calls",
			Buckets: prometheus.DefBuckets,
		}),
		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "batch_seconds",
			Help:    "Time from batch dequeue to reply, including rate-limit sleeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cacheLookups, m.externalCalls, m.batches, m.queueDepth, m.callLatency, m.batchLatency)
	}
	return m
}

func (m *Metrics) cacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) externalCall(kind string, latency time.Duration) {
	if m == nil {
		return
	}
	m.externalCalls.WithLabelValues(kind).Inc()
	m.callLatency.Observe(latency.Seconds())
}

func (m *Metrics) batchDone(kind string, latency time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(kind).Inc()
	m.batchLatency.Observe(latency.Seconds())
}

func (m *Metrics) setQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
