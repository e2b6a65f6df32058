// Package backgrounds hosts long-running side tasks that live alongside
// the perception loop, such as heartbeats and telemetry publishers.
package backgrounds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/normanking/axon/internal/bus"
)

// Background runs for the lifetime of the mode it is attached to.
type Background interface {
	Name() string
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
}

// Config carries shared collaborators into background factories.
type Config struct {
	Name  string
	Mode  string
	Bus   *bus.Bus
	Extra map[string]any
}

// Duration reads a duration from Extra, in seconds, with a fallback.
func (c Config) Duration(key string, fallback time.Duration) time.Duration {
	if c.Extra == nil {
		return fallback
	}
	switch v := c.Extra[key].(type) {
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return fallback
}

// Factory builds a background from its manifest config.
type Factory func(cfg Config) (Background, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register installs a background factory under a manifest type name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New constructs a background by manifest type name.
func New(name string, cfg Config) (Background, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown background type %q", name)
	}
	return f(cfg)
}
