// Package tls builds the server-side TLS configuration for the throttle
// HTTP API.
//
// Certificates are served through a CertReloader, which re-reads the key
// pair whenever either file changes so that renewals (cert-manager,
// Let's Encrypt) take effect without a restart. A renewal that fails to
// load or has expired is logged and the previous certificate stays in use.
//
// Setting a client CA turns on client certificate verification.
package tls
