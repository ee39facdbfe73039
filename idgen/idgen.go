// Package idgen generates identifiers for persisted records. IDs are
// UUIDv7 strings, so they sort by creation time.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUID strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID from gen ("run_", ...).
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Parse validates a UUID string, ignoring any prefix up to the last '_',
// and returns it canonicalised with the prefix kept.
func Parse(s string) (string, error) {
	prefix, raw := "", s
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			prefix, raw = s[:i+1], s[i+1:]
			break
		}
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return prefix + u.String(), nil
}
