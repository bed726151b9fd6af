package tls

import (
	"crypto/tls"

	"mercator-hq/rotor/pkg/config"
)

// ServerConfig builds the listener TLS configuration. It returns nil values
// when TLS is disabled. The returned reloader should be watched for the
// lifetime of the server.
func ServerConfig(cfg *config.TLSConfig) (*tls.Config, *CertificateReloader, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil, nil
	}

	minVersion, err := ParseMinVersion(cfg.MinVersion)
	if err != nil {
		return nil, nil, err
	}

	reloader, err := NewCertificateReloader(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, nil, err
	}

	// #nosec G402 - MinVersion is 1.2 or 1.3
	return &tls.Config{
		MinVersion:     minVersion,
		GetCertificate: reloader.GetCertificate,
	}, reloader, nil
}
