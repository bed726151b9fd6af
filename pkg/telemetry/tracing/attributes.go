package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for rotor spans. Credentials only ever appear redacted.
const (
	AttrRoute       = attribute.Key("rotor.route")
	AttrCredential  = attribute.Key("rotor.credential")
	AttrAttempt     = attribute.Key("rotor.attempt")
	AttrMaxAttempts = attribute.Key("rotor.max_attempts")
	AttrStream      = attribute.Key("rotor.stream")
	AttrStatusCode  = attribute.Key("http.response.status_code")
)

// AttemptAttributes describes one upstream attempt.
func AttemptAttributes(route, redactedCredential string, attempt, maxAttempts int, stream bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRoute.String(route),
		AttrCredential.String(redactedCredential),
		AttrAttempt.Int(attempt),
		AttrMaxAttempts.Int(maxAttempts),
		AttrStream.Bool(stream),
	}
}

// StatusAttribute records an HTTP status code.
func StatusAttribute(code int) attribute.KeyValue {
	return AttrStatusCode.Int(code)
}

// SetError records err on span and marks it failed.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
