package dns01

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Authenticator answers ACME DNS-01 challenges against one DNS provider.
// Perform publishes the validation TXT record; Cleanup returns the zone to
// the state Perform found it in.
type Authenticator interface {
	Perform(ctx context.Context, domain, recordName, content string) error
	Cleanup(ctx context.Context, domain, recordName, content string) error
}

// Factory builds an authenticator from provider-specific credential
// attributes. It validates the attributes and fails fast on missing ones.
type Factory func(attributes map[string]string) (Authenticator, error)

// Registry maps provider names to factories. Providers are selected by
// registered name, never by probing.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a provider. Registering the same name twice panics; it is a
// programming error in plugin wiring.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("dns01: provider %q registered twice", name))
	}
	r.factories[name] = factory
}

// Create builds an authenticator for the named provider.
func (r *Registry) Create(name string, attributes map[string]string) (Authenticator, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown dns-01 provider %q", name)
	}
	return factory(attributes)
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default is the process-wide registry providers register into.
var Default = NewRegistry()

// BaseDomainGuesses returns candidate zone names for a domain, most specific
// first: "a.b.example.com" yields itself, "b.example.com", "example.com".
func BaseDomainGuesses(domain string) []string {
	parts := strings.Split(strings.Trim(domain, "."), ".")
	guesses := make([]string, 0, len(parts)-1)
	for i := 0; i < len(parts)-1; i++ {
		guesses = append(guesses, strings.Join(parts[i:], "."))
	}
	if len(guesses) == 0 {
		guesses = append(guesses, domain)
	}
	return guesses
}
