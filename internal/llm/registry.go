package llm

import (
	"fmt"
	"sync"
)

// Factory builds a provider from its resolved configuration.
type Factory func(cfg Config) (Provider, error)

// The provider registry is a static name-to-factory map. Missing providers
// surface as a lookup error at mode activation, not a runtime scan.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory under a manifest type name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs a provider by manifest type name.
func New(name string, cfg Config) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
	return factory(cfg)
}

func init() {
	Register("openai", func(cfg Config) (Provider, error) {
		return NewOpenAI(cfg), nil
	})
}
