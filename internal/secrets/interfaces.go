package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SecretProvider defines the interface for credential sources
type SecretProvider interface {
	// GetSecret retrieves a secret by key; a missing secret is a *SecretNotFoundError
	GetSecret(ctx context.Context, key string) (*Secret, error)
}

// Secret represents a secret with metadata
type Secret struct {
	Key    string    `json:"key"`
	Value  []byte    `json:"-"` // Never serialize the actual value
	Source string    `json:"source"`
	ReadAt time.Time `json:"read_at"`
}

// String returns the masked value so a Secret is safe to log by accident
func (s *Secret) String() string {
	return Mask(string(s.Value))
}

// Reveal returns the plain value. Pass it to the consumer, never to a logger.
func (s *Secret) Reveal() string {
	return string(s.Value)
}

// ErrSecretNotFound matches any *SecretNotFoundError
var ErrSecretNotFound = errors.New("secret not found")

// SecretNotFoundError wraps secret not found errors with context
type SecretNotFoundError struct {
	Key      string
	Provider string
	Tried    []string // concrete names looked up, e.g. environment variables
}

func (e *SecretNotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("secret '%s' not found in provider '%s'", e.Key, e.Provider)
	}
	return fmt.Sprintf("secret '%s' not found in provider '%s' (tried %s)",
		e.Key, e.Provider, strings.Join(e.Tried, ", "))
}

func (e *SecretNotFoundError) Is(target error) bool {
	return target == ErrSecretNotFound
}

// Mask keeps the last four characters of short-lived display values, e.g. "****9xQk"
func Mask(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
