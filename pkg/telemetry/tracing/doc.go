// Package tracing provides OpenTelemetry tracing for rotor.
//
// New installs an OTLP gRPC exporting tracer provider and the W3C trace
// context propagator as process globals when tracing is enabled. Spans are
// then produced in two places:
//
//   - middleware.TracingMiddleware opens a server span per inbound request,
//     continuing a caller supplied traceparent
//   - the failover executor opens a client span per upstream attempt
//
// Both use otel.Tracer, so nothing else needs a reference to the Tracer.
// Attempt spans carry the route, the attempt number, the redacted
// credential and the upstream status code (see AttemptAttributes).
//
// Sampling is "always", "never" or "ratio", each wrapped in ParentBased.
package tracing
