package auth

import (
	"errors"

	"mercator-hq/throttle/pkg/config"
)

var (
	// ErrMissingKey means no source carried a key.
	ErrMissingKey = errors.New("missing API key")

	// ErrInvalidKey means the key matches no configured key.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrKeyDisabled means the key is configured but disabled.
	ErrKeyDisabled = errors.New("API key disabled")
)

// Key is one accepted API key.
type Key struct {
	Name    string
	Secret  string
	Enabled bool
}

// KeysFromConfig resolves configured keys, reading KeyEnv where set.
func KeysFromConfig(cfgs []config.APIKeyConfig) []Key {
	keys := make([]Key, 0, len(cfgs))
	for _, c := range cfgs {
		keys = append(keys, Key{Name: c.Name, Secret: c.Secret(), Enabled: !c.Disabled})
	}
	return keys
}

// Source says where to look for a key on a request.
type Source struct {
	// Header is the header name.
	Header string

	// Scheme, when set, must prefix the header value followed by a space.
	Scheme string
}

// DefaultSources accepts "Authorization: Bearer <key>" then "X-API-Key".
var DefaultSources = []Source{
	{Header: "Authorization", Scheme: "Bearer"},
	{Header: "X-API-Key"},
}
