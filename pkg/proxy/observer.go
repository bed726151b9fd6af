package proxy

import (
	"time"

	"mercator-hq/rotor/pkg/relay"
)

// Outcome labels for attempts and requests.
const (
	OutcomeSuccess         = "success"
	OutcomeFailure         = "failure"
	OutcomeUpstreamFailure = "upstream_failure"
	OutcomePoolExhausted   = "pool_exhausted"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeCancelled       = "cancelled"
	OutcomeError           = "error"
)

// Observer receives proxy measurements. The metrics collector implements it.
type Observer interface {
	// ObserveAttempt is called once per upstream attempt.
	ObserveAttempt(route, outcome string, statusCode int, duration time.Duration)

	// ObserveRequest is called once per inbound request with the number of
	// attempts it took.
	ObserveRequest(route, outcome string, attempts int)

	// ObserveStream is called when a relayed stream ends.
	ObserveStream(stats relay.Stats)
}

// NopObserver discards all measurements.
type NopObserver struct{}

func (NopObserver) ObserveAttempt(string, string, int, time.Duration) {}
func (NopObserver) ObserveRequest(string, string, int)                {}
func (NopObserver) ObserveStream(relay.Stats)                         {}
