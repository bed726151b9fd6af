package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/rotor/pkg/config"
	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/proxy"
	"mercator-hq/rotor/pkg/relay"
)

var (
	_ proxy.Observer               = (*Collector)(nil)
	_ credentials.SnapshotObserver = (*Collector)(nil)
)

// Collector owns the Prometheus registry of the proxy. It receives
// measurements from the failover executor, the stream relay and the pool
// reporter.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	proxyMetrics *ProxyMetrics
	poolMetrics  *PoolMetrics
}

// NewCollector creates a collector and registers its metrics. If registry
// is nil a fresh registry with the Go runtime and process collectors is
// used.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	executor := proxy.NewExecutor(store, client, userKeys, collector)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "rotor"
	}
	if len(cfg.AttemptDurationBuckets) == 0 {
		// Generation calls range from sub-second to tens of seconds.
		cfg.AttemptDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	}

	return &Collector{
		config:       cfg,
		registry:     registry,
		proxyMetrics: NewProxyMetrics(cfg, registry),
		poolMetrics:  NewPoolMetrics(cfg, registry),
	}
}

// ObserveAttempt records one upstream attempt.
func (c *Collector) ObserveAttempt(route, outcome string, statusCode int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.proxyMetrics.RecordAttempt(route, outcome, statusCode, duration)
}

// ObserveRequest records the end of one inbound request.
func (c *Collector) ObserveRequest(route, outcome string, attempts int) {
	if !c.config.Enabled {
		return
	}
	c.proxyMetrics.RecordRequest(route, outcome, attempts)
}

// ObserveStream records a finished stream relay.
func (c *Collector) ObserveStream(stats relay.Stats) {
	if !c.config.Enabled {
		return
	}
	c.proxyMetrics.RecordStream(stats)
}

// ObservePool publishes a pool snapshot as gauges.
func (c *Collector) ObservePool(snap credentials.PoolSnapshot) {
	if !c.config.Enabled {
		return
	}
	c.poolMetrics.Update(snap)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
