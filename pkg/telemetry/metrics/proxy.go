package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/rotor/pkg/config"
	"mercator-hq/rotor/pkg/relay"
)

// ProxyMetrics tracks the forwarding path.
//
// Metrics:
//   - rotor_upstream_attempts_total{route,outcome,status}
//   - rotor_upstream_attempt_duration_seconds{route}
//   - rotor_requests_total{route,outcome}
//   - rotor_request_attempts{route}
//   - rotor_streams_total
//   - rotor_stream_bytes_total{direction}
//   - rotor_stream_decode_anomalies_total
//   - rotor_stream_charset_fallbacks_total
type ProxyMetrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec

	requestsTotal   *prometheus.CounterVec
	requestAttempts *prometheus.HistogramVec

	streamsTotal     prometheus.Counter
	streamBytes      *prometheus.CounterVec
	streamAnomalies  prometheus.Counter
	charsetFallbacks prometheus.Counter
}

// NewProxyMetrics creates and registers forwarding metrics.
func NewProxyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProxyMetrics {
	pm := &ProxyMetrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempts_total",
				Help:      "Upstream attempts by route, outcome and upstream status",
			},
			[]string{"route", "outcome", "status"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempt_duration_seconds",
				Help:      "Time until an upstream attempt was classified",
				Buckets:   cfg.AttemptDurationBuckets,
			},
			[]string{"route"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Proxied requests by route and final outcome",
			},
			[]string{"route", "outcome"},
		),
		requestAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_attempts",
				Help:      "Upstream attempts needed per proxied request",
				Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
			},
			[]string{"route"},
		),
		streamsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "streams_total",
			Help:      "Relayed event streams",
		}),
		streamBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_bytes_total",
				Help:      "Bytes read from upstream (in) and written to callers (out) by the stream relay",
			},
			[]string{"direction"},
		),
		streamAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_decode_anomalies_total",
			Help:      "Malformed byte sequences replaced while decoding streams",
		}),
		charsetFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_charset_fallbacks_total",
			Help:      "Streams whose declared charset was unknown and decoded as UTF-8",
		}),
	}

	registry.MustRegister(
		pm.attemptsTotal,
		pm.attemptDuration,
		pm.requestsTotal,
		pm.requestAttempts,
		pm.streamsTotal,
		pm.streamBytes,
		pm.streamAnomalies,
		pm.charsetFallbacks,
	)

	return pm
}

// RecordAttempt records one upstream attempt.
func (pm *ProxyMetrics) RecordAttempt(route, outcome string, statusCode int, duration time.Duration) {
	pm.attemptsTotal.WithLabelValues(route, outcome, statusLabel(statusCode)).Inc()
	pm.attemptDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRequest records the final outcome of a proxied request.
func (pm *ProxyMetrics) RecordRequest(route, outcome string, attempts int) {
	if route == "" {
		route = "none"
	}
	pm.requestsTotal.WithLabelValues(route, outcome).Inc()
	if attempts > 0 {
		pm.requestAttempts.WithLabelValues(route).Observe(float64(attempts))
	}
}

// RecordStream records a finished stream relay.
func (pm *ProxyMetrics) RecordStream(stats relay.Stats) {
	pm.streamsTotal.Inc()
	pm.streamBytes.WithLabelValues("in").Add(float64(stats.BytesIn))
	pm.streamBytes.WithLabelValues("out").Add(float64(stats.BytesOut))
	pm.streamAnomalies.Add(float64(stats.Anomalies))
	if stats.CharsetFallback {
		pm.charsetFallbacks.Inc()
	}
}

func statusLabel(code int) string {
	if code <= 0 {
		return "none"
	}
	return strconv.Itoa(code)
}
