// Package secrets provides the credential-provider abstraction for external
// service keys. Providers memoize the credential for the process lifetime and
// re-fetch after Invalidate, which callers use on authentication failures.
package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Provider resolves a credential for an external collaborator.
type Provider interface {
	// Get returns the credential, fetching it on first use.
	Get(ctx context.Context) (string, error)

	// Invalidate drops the memoized credential so the next Get re-fetches.
	Invalidate()
}

// ErrNoCredential is returned when no credential can be resolved. Callers
// treat it as an extraction failure and fall back, never as a crash.
var ErrNoCredential = fmt.Errorf("no credential available")

// envProvider reads a credential from an environment variable, memoized.
type envProvider struct {
	name string

	mu     sync.Mutex
	cached string
	loaded bool
}

// FromEnv returns a Provider backed by the named environment variable.
func FromEnv(name string) Provider {
	return &envProvider{name: name}
}

func (p *envProvider) Get(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded && p.cached != "" {
		return p.cached, nil
	}

	val := os.Getenv(p.name)
	if val == "" {
		return "", fmt.Errorf("%w: environment variable %s is empty", ErrNoCredential, p.name)
	}

	p.cached = val
	p.loaded = true
	return val, nil
}

func (p *envProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = ""
	p.loaded = false
}

// staticProvider returns a fixed credential. Used in tests and for
// configurations that inject the key directly.
type staticProvider struct {
	value string
}

// Static returns a Provider that always yields value.
func Static(value string) Provider {
	return &staticProvider{value: value}
}

func (p *staticProvider) Get(_ context.Context) (string, error) {
	if p.value == "" {
		return "", ErrNoCredential
	}
	return p.value, nil
}

func (p *staticProvider) Invalidate() {}
