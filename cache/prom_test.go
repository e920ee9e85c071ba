package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newTestCache(t, testCacheConfig())

	// One local miss (which also misses remotely), one write, one local hit.
	c.Get(ctx, "missing")
	require.NoError(t, c.Set(ctx, "key", 1, SetOptions{TTL: time.Minute}))
	c.Get(ctx, "key")

	col := NewCollector(c, "stagio")
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(col))

	expected := `
# HELP stagio_cache_l1_entries Number of entries in the local cache tier
# TYPE stagio_cache_l1_entries gauge
stagio_cache_l1_entries 1
# HELP stagio_cache_hits_total Cache hits per tier
# TYPE stagio_cache_hits_total counter
stagio_cache_hits_total{tier="l1"} 1
stagio_cache_hits_total{tier="l2"} 0
# HELP stagio_cache_misses_total Cache misses per tier
# TYPE stagio_cache_misses_total counter
stagio_cache_misses_total{tier="l1"} 1
stagio_cache_misses_total{tier="l2"} 1
# HELP stagio_cache_hit_rate Hit rate per tier
# TYPE stagio_cache_hit_rate gauge
stagio_cache_hit_rate{tier="l1"} 0.5
stagio_cache_hit_rate{tier="l2"} 0
# HELP stagio_cache_remote_connected Whether the remote tier connection is healthy
# TYPE stagio_cache_remote_connected gauge
stagio_cache_remote_connected 1
# HELP stagio_cache_circuit_state Circuit breaker state (0 closed, 1 half-open, 2 open)
# TYPE stagio_cache_circuit_state gauge
stagio_cache_circuit_state 0
# HELP stagio_cache_circuit_calls_total Circuit breaker call outcomes
# TYPE stagio_cache_circuit_calls_total counter
stagio_cache_circuit_calls_total{outcome="failure"} 0
stagio_cache_circuit_calls_total{outcome="rejected"} 0
stagio_cache_circuit_calls_total{outcome="success"} 2
# HELP stagio_cache_circuit_opened_total Times the circuit breaker has opened
# TYPE stagio_cache_circuit_opened_total counter
stagio_cache_circuit_opened_total 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))
}

func TestCollectorLocalOnly(t *testing.T) {
	c := New(context.Background(), nil, testCacheConfig())
	defer c.Close(context.Background())

	col := NewCollector(c, "stagio")
	assert.Equal(t, 1, testutil.CollectAndCount(col, "stagio_cache_remote_connected"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(col))
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "stagio_cache_remote_connected" {
			assert.Zero(t, mf.GetMetric()[0].GetGauge().GetValue())
			return
		}
	}
	t.Fatal("remote_connected metric not exported")
}
