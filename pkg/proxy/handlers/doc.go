// Package handlers provides the HTTP handlers mounted by the server.
//
// ProxyHandler serves the upstream-mirroring prefix: it buffers the inbound
// request, runs the failover executor and writes the upstream answer,
// streaming it through the relay when the caller asked for an event stream.
//
// AdminHandler serves the credential administration API:
//
//	GET  /admin/keys?sort_by=<column>&sort_order=<asc|desc>
//	POST /toggle_key/{key}/{enable|disable}
//	POST /add_key                     {"key": "..."}
//
// Mutations answer {"success": bool, "message": string}. Authentication is
// applied by the router, not by the handlers.
package handlers
