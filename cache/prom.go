package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stagio/go-common/resilience"
)

// Collector exposes a TieredCache's metrics snapshot to Prometheus.
// Register it on an existing registry; scrapes read the snapshot, so the
// collector holds no state of its own.
type Collector struct {
	cache *TieredCache

	l1Size       *prometheus.Desc
	hits         *prometheus.Desc
	misses       *prometheus.Desc
	hitRate      *prometheus.Desc
	connected    *prometheus.Desc
	circuitState *prometheus.Desc
	circuitCalls *prometheus.Desc
	circuitOpens *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a prometheus.Collector for c. namespace prefixes
// every metric name (e.g. "stagio").
func NewCollector(c *TieredCache, namespace string) *Collector {
	return &Collector{
		cache: c,
		l1Size: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "l1_entries"),
			"Number of entries in the local cache tier", nil, nil),
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hits_total"),
			"Cache hits per tier", []string{"tier"}, nil),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "misses_total"),
			"Cache misses per tier", []string{"tier"}, nil),
		hitRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hit_rate"),
			"Hit rate per tier", []string{"tier"}, nil),
		connected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "remote_connected"),
			"Whether the remote tier connection is healthy", nil, nil),
		circuitState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "circuit_state"),
			"Circuit breaker state (0 closed, 1 half-open, 2 open)", nil, nil),
		circuitCalls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "circuit_calls_total"),
			"Circuit breaker call outcomes", []string{"outcome"}, nil),
		circuitOpens: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "circuit_opened_total"),
			"Times the circuit breaker has opened", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.l1Size
	ch <- c.hits
	ch <- c.misses
	ch <- c.hitRate
	ch <- c.connected
	ch <- c.circuitState
	ch <- c.circuitCalls
	ch <- c.circuitOpens
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.cache.Metrics()

	ch <- prometheus.MustNewConstMetric(c.l1Size, prometheus.GaugeValue, float64(m.L1.Size))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(m.L1.Hits), "l1")
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(m.L2.Hits), "l2")
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(m.L1.Misses), "l1")
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(m.L2.Misses), "l2")
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, m.L1.HitRate, "l1")
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, m.L2.HitRate, "l2")

	var connected float64
	if m.L2.Connected {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)

	var state float64
	switch m.Circuit.State {
	case resilience.StateHalfOpen:
		state = 1
	case resilience.StateOpen:
		state = 2
	}
	ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, state)
	ch <- prometheus.MustNewConstMetric(c.circuitCalls, prometheus.CounterValue, float64(m.Circuit.Successes), "success")
	ch <- prometheus.MustNewConstMetric(c.circuitCalls, prometheus.CounterValue, float64(m.Circuit.Failures), "failure")
	ch <- prometheus.MustNewConstMetric(c.circuitCalls, prometheus.CounterValue, float64(m.Circuit.Rejections), "rejected")
	ch <- prometheus.MustNewConstMetric(c.circuitOpens, prometheus.CounterValue, float64(m.Circuit.TimesOpened))
}
