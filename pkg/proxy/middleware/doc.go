// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// Every middleware has the func(http.Handler) http.Handler shape so it can be
// mounted with chi's Router.Use. The server installs them outermost first:
//
//	Recovery -> Tracing -> RequestID -> Logging -> CORS -> routes
//
// # Tracing
//
// TracingMiddleware opens a server span per request and returns its trace ID
// in X-Trace-ID. Log records written with the request context carry the same
// trace_id.
//
// # Request ID
//
// RequestIDMiddleware stores a UUID v4 (or a printable client-supplied
// X-Request-ID) in the context through logging.WithRequestID, so every record
// logged with that context carries a request_id field.
//
// # Streaming
//
// The writer installed by LoggingMiddleware and RecoveryMiddleware implements
// Flush and Unwrap. Handlers should flush through http.ResponseController,
// which reaches the connection through the wrappers.
//
// # Recovery
//
// A panic before the first write becomes a plain text 500. A panic after the
// response started is logged and the connection closes with whatever was
// already sent.
package middleware
