package cache

import (
	"os"
	"strconv"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/stagio/go-common/resilience"
)

// Config holds tunables for a TieredCache. The zero value is not usable;
// start from DefaultConfig or ConfigFromEnv.
type Config struct {
	// DefaultTTL applies when SetOptions.TTL is zero.
	DefaultTTL time.Duration

	// L1Cap bounds local retention while the remote tier is usable. Short
	// on purpose: the local copy only has to bridge repeated reads between
	// remote round trips.
	L1Cap time.Duration

	// L1CapDegraded bounds local retention while the remote tier is down.
	// Minutes-scale, widening the local safety net exactly when the
	// durable tier cannot take over.
	L1CapDegraded time.Duration

	// L1Capacity is the entry bound of the local LRU store. Zero selects
	// the unbounded map store.
	L1Capacity int

	// QueryTimeout bounds a single remote operation.
	QueryTimeout time.Duration

	// RemoteCooldown is how far each connection-level error pushes the
	// remote tier's disabled-until deadline. A second backoff layer,
	// independent of the breaker's own timeout.
	RemoteCooldown time.Duration

	// ErrorLogInterval rate-limits connection error logging.
	ErrorLogInterval time.Duration

	// ExpirySweep is the interval of the background sweep that removes
	// expired local entries.
	ExpirySweep time.Duration

	// ProbeInterval is how often the background health probe pings the
	// remote tier while it is marked not ready. Recovery between regular
	// calls depends on it, since an unusable remote receives no traffic.
	ProbeInterval time.Duration

	// ScanBatch is the COUNT hint for remote SCAN during glob
	// invalidation.
	ScanBatch int64

	// Prefix namespaces all remote keys. Empty disables prefixing.
	Prefix string

	// Breaker configures the circuit breaker guarding the remote tier.
	Breaker resilience.Config
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:       5 * time.Minute,
		L1Cap:            30 * time.Second,
		L1CapDegraded:    10 * time.Minute,
		L1Capacity:       10000,
		QueryTimeout:     5 * time.Second,
		RemoteCooldown:   30 * time.Second,
		ErrorLogInterval: time.Minute,
		ExpirySweep:      time.Minute,
		ProbeInterval:    15 * time.Second,
		ScanBatch:        100,
		Breaker:          resilience.DefaultConfig(),
	}
}

// ConfigFromEnv returns DefaultConfig overlaid with STAGIO_CACHE_*
// environment variables. Durations accept extended syntax such as "90s",
// "5m" or "1h30m" (go-str2duration). Unparseable values are ignored.
//
//	STAGIO_CACHE_DEFAULT_TTL
//	STAGIO_CACHE_L1_CAP
//	STAGIO_CACHE_L1_CAP_DEGRADED
//	STAGIO_CACHE_L1_CAPACITY
//	STAGIO_CACHE_QUERY_TIMEOUT
//	STAGIO_CACHE_REMOTE_COOLDOWN
//	STAGIO_CACHE_PREFIX
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	envDuration("STAGIO_CACHE_DEFAULT_TTL", &cfg.DefaultTTL)
	envDuration("STAGIO_CACHE_L1_CAP", &cfg.L1Cap)
	envDuration("STAGIO_CACHE_L1_CAP_DEGRADED", &cfg.L1CapDegraded)
	envDuration("STAGIO_CACHE_QUERY_TIMEOUT", &cfg.QueryTimeout)
	envDuration("STAGIO_CACHE_REMOTE_COOLDOWN", &cfg.RemoteCooldown)
	if v := os.Getenv("STAGIO_CACHE_L1_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.L1Capacity = n
		}
	}
	if v := os.Getenv("STAGIO_CACHE_PREFIX"); v != "" {
		cfg.Prefix = v
	}
	return cfg
}

func envDuration(name string, into *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if d, err := str2duration.ParseDuration(v); err == nil && d > 0 {
		*into = d
	}
}
