// Package telemetry groups rotor's observability packages.
//
//   - logging: slog setup, request and trace IDs in records, credential redaction
//   - metrics: Prometheus collector fed by the failover executor, the stream
//     relay and the pool reporter
//   - tracing: OpenTelemetry spans per inbound request and per upstream attempt
//   - health: liveness, readiness and version endpoints
//
// Every component receives its slice of config.TelemetryConfig explicitly.
// Credentials only ever leave the process redacted to a four character
// prefix.
package telemetry
