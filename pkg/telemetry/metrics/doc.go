// Package metrics exports Prometheus metrics for the proxy.
//
// Collector implements proxy.Observer, so the failover executor and the
// proxy handler report attempts, request outcomes and stream statistics to
// it, and credentials.SnapshotObserver, so the pool reporter publishes
// credential counts as gauges. Metrics are served by Handler, usually at
// /metrics:
//
//	# HELP rotor_upstream_attempts_total Upstream attempts by route, outcome and upstream status
//	# TYPE rotor_upstream_attempts_total counter
//	rotor_upstream_attempts_total{outcome="failure",route="pool",status="429"} 12
//
// Credentials are never used as label values.
package metrics
