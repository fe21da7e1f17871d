package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"mercator-hq/throttle/pkg/config"
)

// ServerConfig returns the *tls.Config for cfg, serving certificates from
// certs. It returns nil when TLS is disabled.
func ServerConfig(cfg config.TLSConfig, certs *CertReloader) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if certs == nil {
		return nil, fmt.Errorf("TLS enabled without a certificate source")
	}

	minVersion, err := parseMinVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion is limited to 1.2 or 1.3
	tlsConfig := &tls.Config{
		MinVersion:     minVersion,
		GetCertificate: certs.GetCertificate,
	}

	if cfg.ClientCAFile != "" {
		pool, err := loadCAPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		auth, err := parseClientAuth(cfg.ClientAuth)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = auth
	}

	return tlsConfig, nil
}

func parseMinVersion(v string) (uint16, error) {
	switch v {
	case "1.3", "":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q", v)
	}
}

func parseClientAuth(s string) (tls.ClientAuthType, error) {
	switch s {
	case "require", "":
		return tls.RequireAndVerifyClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "verify_if_given":
		return tls.VerifyClientCertIfGiven, nil
	default:
		return tls.NoClientCert, fmt.Errorf("unsupported client auth %q", s)
	}
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in client CA %s", path)
	}
	return pool, nil
}
