package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// EnvProvider implements SecretProvider for environment variables.
// Values are read on every call so a key exported after startup is picked up.
type EnvProvider struct {
	prefix  string
	aliases map[string][]string
	lookup  func(string) (string, bool)
}

// NewEnvProvider creates a new environment variable secret provider
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{
		prefix:  prefix,
		aliases: make(map[string][]string),
		lookup:  os.LookupEnv,
	}
}

// WithAlias registers further variable names tried, in order, after the primary one
func (p *EnvProvider) WithAlias(key string, envNames ...string) *EnvProvider {
	p.aliases[key] = append(p.aliases[key], envNames...)
	return p
}

// WithLookup replaces os.LookupEnv, mainly for tests
func (p *EnvProvider) WithLookup(lookup func(string) (string, bool)) *EnvProvider {
	p.lookup = lookup
	return p
}

// GetSecret retrieves a secret from environment variables.
// Blank and whitespace-only values count as unset.
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (*Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := append([]string{p.buildEnvKey(key)}, p.aliases[key]...)
	for _, name := range names {
		value, ok := p.lookup(name)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		return &Secret{
			Key:    key,
			Value:  []byte(value),
			Source: "env:" + name,
			ReadAt: time.Now(),
		}, nil
	}

	return nil, &SecretNotFoundError{
		Key:      key,
		Provider: "environment",
		Tried:    names,
	}
}

func (p *EnvProvider) buildEnvKey(key string) string {
	if p.prefix == "" {
		return strings.ToUpper(key)
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(p.prefix), strings.ToUpper(key))
}
