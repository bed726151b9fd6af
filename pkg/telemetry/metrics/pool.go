package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/rotor/pkg/config"
	"mercator-hq/rotor/pkg/credentials"
)

// PoolMetrics exports the latest pool snapshot.
//
// Metrics:
//   - rotor_pool_credentials{state="total|active|removed|failing"}
//   - rotor_pool_recorded_attempts{result="success|error"}
type PoolMetrics struct {
	credentials *prometheus.GaugeVec
	recorded    *prometheus.GaugeVec
}

// NewPoolMetrics creates and registers pool gauges.
func NewPoolMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PoolMetrics {
	pm := &PoolMetrics{
		credentials: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pool_credentials",
				Help:      "Credentials in the pool by state at the last snapshot",
			},
			[]string{"state"},
		),
		recorded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pool_recorded_attempts",
				Help:      "Attempt outcomes persisted for all credentials at the last snapshot",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(pm.credentials, pm.recorded)
	return pm
}

// Update replaces the gauges with snap.
func (pm *PoolMetrics) Update(snap credentials.PoolSnapshot) {
	pm.credentials.WithLabelValues("total").Set(float64(snap.Total))
	pm.credentials.WithLabelValues("active").Set(float64(snap.Active))
	pm.credentials.WithLabelValues("removed").Set(float64(snap.Removed))
	pm.credentials.WithLabelValues("failing").Set(float64(snap.Failing))
	pm.recorded.WithLabelValues("success").Set(float64(snap.SuccessCount))
	pm.recorded.WithLabelValues("error").Set(float64(snap.ErrorCount))
}
