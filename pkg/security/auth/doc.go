/*
Package auth authenticates HTTP API clients by API key.

Keys come from the server configuration. Each has a name, used as the
client identity in logs, and a secret. Clients present the secret as a
bearer token or in the X-API-Key header:

	curl -H "Authorization: Bearer $KEY" -X POST localhost:8080/v1/limiters/api/hit
	curl -H "X-API-Key: $KEY" localhost:8080/v1/limiters

Secrets are held as SHA-256 digests. Replace swaps the key set in place,
so a configuration reload can rotate keys without restarting the server.

# Usage

	validator := auth.NewValidator(auth.KeysFromConfig(cfg.Server.Auth.Keys))
	protected := auth.Middleware(validator, auth.DefaultSources, logger)(handler)

Rejected requests get 401 with the server's JSON error envelope and a
WWW-Authenticate challenge.
*/
package auth
