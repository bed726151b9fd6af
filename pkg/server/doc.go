// Package server assembles the rotor HTTP surface and manages its lifecycle.
//
// The chi router mounts, behind the shared middleware chain
// (Recovery, Tracing, RequestID, Logging, CORS):
//
//	{prefix}/*                        proxied to the upstream API (GET POST PUT DELETE PATCH)
//	GET  /admin/keys                  credential listing         (basic auth)
//	POST /add_key                     register a credential      (basic auth)
//	POST /toggle_key/{key}/{action}   enable or disable          (basic auth)
//	GET  /health /ready /version      operational endpoints
//	GET  {metrics path}               Prometheus exposition, when enabled
//
// Start listens on the configured address, optionally with TLS, and serves
// until its context is cancelled. Shutdown waits up to
// proxy.shutdown_timeout for in-flight requests and open streams before
// closing the remaining connections.
package server
