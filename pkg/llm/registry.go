package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound indicates the requested provider is not registered.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered indicates a provider with this name already exists.
	ErrProviderAlreadyRegistered = errors.New("provider already registered")

	// ErrNoDefaultProvider indicates no default provider has been set.
	ErrNoDefaultProvider = errors.New("no default provider configured")

	// ErrFactoryNotFound indicates no factory is registered for the provider type.
	ErrFactoryNotFound = errors.New("provider factory not found")
)

// ProviderFactory builds a Provider from credentials.
type ProviderFactory func(creds Credentials) (Provider, error)

// Registry manages provider factories and activated providers.
//
// Initialization is two-phase: factories register at import time (in the
// providers package's init), and instances activate at startup once
// configuration and secrets are resolved. Instance names come from the
// user's config and need not match the provider type name, so one type
// can be activated several times with different credentials.
//
// Safe for concurrent use.
type Registry struct {
	mu              sync.RWMutex
	factories       map[string]ProviderFactory
	providers       map[string]Provider
	defaultProvider string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
		providers: make(map[string]Provider),
	}
}

// RegisterFactory registers a factory for a provider type. Called from
// init functions; registering the same type twice overwrites.
func (r *Registry) RegisterFactory(typ string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = factory
}

// Activate instantiates the named provider type with credentials and
// registers the instance under the same name.
func (r *Registry) Activate(name string, creds Credentials) error {
	return r.ActivateAs(name, name, creds)
}

// ActivateAs instantiates provider type typ with credentials and registers
// the instance under name. The first activation becomes the default.
func (r *Registry) ActivateAs(name, typ string, creds Credentials) error {
	r.mu.Lock()
	factory, ok := r.factories[typ]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrFactoryNotFound, typ)
	}

	if creds != nil {
		if err := creds.Validate(); err != nil {
			return fmt.Errorf("provider %s: invalid credentials: %w", name, err)
		}
	}

	provider, err := factory(creds)
	if err != nil {
		return fmt.Errorf("provider %s: %w", name, err)
	}

	return r.register(name, provider)
}

// Register adds an already-constructed provider under its own name.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("cannot register nil provider")
	}
	return r.register(p.Name(), p)
}

func (r *Registry) register(name string, p Provider) error {
	if name == "" {
		return fmt.Errorf("provider name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, name)
	}
	r.providers[name] = p
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
	return nil
}

// Replace swaps the provider registered under name for p, keeping the
// default designation intact. It is used to wrap an activated provider
// with rate limiting or retries after activation.
func (r *Registry) Replace(name string, p Provider) error {
	if p == nil {
		return fmt.Errorf("cannot register nil provider")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	r.providers[name] = p
	return nil
}

// Unregister removes an activated provider. Removing the default clears it.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	delete(r.providers, name)
	if r.defaultProvider == name {
		r.defaultProvider = ""
	}
	return nil
}

// Get returns the activated provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (activated: %v)", ErrProviderNotFound, name, r.namesLocked())
	}
	return p, nil
}

// GetDefault returns the default provider.
func (r *Registry) GetDefault() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultProvider == "" {
		return nil, ErrNoDefaultProvider
	}
	return r.providers[r.defaultProvider], nil
}

// SetDefault marks an activated provider as the default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	r.defaultProvider = name
	return nil
}

// List returns activated provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListFactories returns registered provider type names, sorted.
func (r *Registry) ListFactories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasFactory reports whether a factory is registered for typ.
func (r *Registry) HasFactory(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

// IsActive reports whether a provider instance is activated under name.
func (r *Registry) IsActive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// CreateWithRetry returns the named provider wrapped with retry behavior.
func (r *Registry) CreateWithRetry(name string, config RetryConfig) (Provider, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return NewRetryWrapper(p, config), nil
}

// CreateFailover builds a FailoverProvider over the named providers, tried
// in order.
func (r *Registry) CreateFailover(config FailoverConfig, names ...string) (*FailoverProvider, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("failover requires at least one provider")
	}

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return NewFailoverProvider(config, providers...), nil
}

// globalRegistry backs the package-level registration functions.
var globalRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return globalRegistry
}

// RegisterFactory registers a provider factory with the global registry.
func RegisterFactory(typ string, factory ProviderFactory) {
	globalRegistry.RegisterFactory(typ, factory)
}

// Activate instantiates a provider in the global registry.
func Activate(name string, creds Credentials) error {
	return globalRegistry.Activate(name, creds)
}

// ActivateAs instantiates a provider type under an instance name in the
// global registry.
func ActivateAs(name, typ string, creds Credentials) error {
	return globalRegistry.ActivateAs(name, typ, creds)
}

// Get returns an activated provider from the global registry.
func Get(name string) (Provider, error) {
	return globalRegistry.Get(name)
}

// GetDefault returns the global registry's default provider.
func GetDefault() (Provider, error) {
	return globalRegistry.GetDefault()
}
