package auth

import (
	"crypto/sha256"
	"sort"
	"sync"
)

type entry struct {
	name    string
	enabled bool
}

// Validator checks presented secrets against a set of keys.
type Validator struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]entry
}

// NewValidator creates a validator for keys. Keys with empty secrets are
// ignored.
func NewValidator(keys []Key) *Validator {
	v := &Validator{}
	v.Replace(keys)
	return v
}

// Replace swaps in a new key set.
func (v *Validator) Replace(keys []Key) {
	m := make(map[[sha256.Size]byte]entry, len(keys))
	for _, k := range keys {
		if k.Secret == "" {
			continue
		}
		m[sha256.Sum256([]byte(k.Secret))] = entry{name: k.Name, enabled: k.Enabled}
	}

	v.mu.Lock()
	v.keys = m
	v.mu.Unlock()
}

// Validate returns the name of the key matching secret.
func (v *Validator) Validate(secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingKey
	}
	sum := sha256.Sum256([]byte(secret))

	v.mu.RLock()
	e, ok := v.keys[sum]
	v.mu.RUnlock()

	switch {
	case !ok:
		return "", ErrInvalidKey
	case !e.enabled:
		return e.name, ErrKeyDisabled
	}
	return e.name, nil
}

// Names lists the configured key names, sorted.
func (v *Validator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.keys))
	for _, e := range v.keys {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}
