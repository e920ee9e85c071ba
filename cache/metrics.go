package cache

import (
	"sync/atomic"

	"github.com/stagio/go-common/resilience"
)

// counters holds the running hit and miss totals for both tiers.
type counters struct {
	l1Hits   atomic.Int64
	l1Misses atomic.Int64
	l2Hits   atomic.Int64
	l2Misses atomic.Int64
}

// LocalMetrics describes the local (L1) tier.
type LocalMetrics struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// RemoteMetrics describes the remote (L2) tier.
type RemoteMetrics struct {
	Connected    bool    `json:"connected"`
	CircuitState string  `json:"circuit_state"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
}

// Metrics is a point-in-time snapshot of cache health, reported together
// with the breaker's own counters for operational visibility.
type Metrics struct {
	L1      LocalMetrics       `json:"l1"`
	L2      RemoteMetrics      `json:"l2"`
	Circuit resilience.Metrics `json:"circuit"`
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
