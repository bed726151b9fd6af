/*
Package security groups the access-control pieces of rotor.

  - auth: trusted user keys and the admin basic auth middleware
  - tls: optional listener TLS with certificate hot reload

Upstream credentials are never treated as secrets to be resolved from an
external manager: they are the pool itself and live in the credential store.
*/
package security
