// Package tls terminates TLS on the proxy listener.
//
// TLS is optional; most deployments run rotor behind a load balancer. When
// proxy.tls.enabled is set, ServerConfig loads the key pair and returns a
// tls.Config whose GetCertificate is served by a CertificateReloader. Its
// Watch method follows the certificate and key files with fsnotify and
// swaps in renewed certificates without a restart.
package tls
