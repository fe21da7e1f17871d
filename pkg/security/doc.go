/*
Package security groups the transport and access controls of the throttle
HTTP API.

# TLS

Serve HTTPS with certificates that are re-read when renewed on disk:

	reloader, err := tls.NewCertReloader(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, logger)
	go reloader.Watch(ctx)

	tlsConfig, err := tls.ServerConfig(cfg.Server.TLS, reloader)

# API Key Authentication

Require a key on the limiter routes:

	validator := auth.NewValidator(auth.KeysFromConfig(cfg.Server.Auth.Keys))
	handler = auth.Middleware(validator, auth.DefaultSources, logger)(handler)
*/
package security
