// Package simulators hosts components that mirror agent decisions into
// an external or virtual world without driving real hardware.
package simulators

import (
	"context"
	"fmt"
	"sync"

	"github.com/normanking/axon/internal/bus"
	"github.com/normanking/axon/internal/llm"
)

// Simulator receives every command batch the runtime dispatches and may
// additionally run its own loop for connection upkeep.
type Simulator interface {
	Name() string
	// Run blocks until ctx is cancelled. Simulators with no background
	// work should just wait on ctx.Done().
	Run(ctx context.Context) error
	// Simulate is called once per tick with the commands chosen by the
	// reasoning step. It must not block the tick loop.
	Simulate(cmds []llm.Command)
}

// Config carries the shared collaborators a simulator may need.
type Config struct {
	Name  string
	Mode  string
	Bus   *bus.Bus
	Extra map[string]any
}

// Factory builds a simulator from its manifest config.
type Factory func(cfg Config) (Simulator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register installs a simulator factory under a manifest type name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New constructs a simulator by manifest type name.
func New(name string, cfg Config) (Simulator, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown simulator type %q", name)
	}
	return f(cfg)
}
