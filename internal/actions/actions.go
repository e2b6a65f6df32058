// Package actions defines the agent actions a mode can take and their
// connectors to the outside world. An action pairs a declarative schema
// (what the reasoning backend sees) with a connector (what actually runs).
// Actions are instantiated fresh from manifests on every mode activation.
package actions

import (
	"context"
	"fmt"
	"sync"

	"github.com/normanking/axon/internal/llm"
	"github.com/normanking/axon/internal/memory"
	"github.com/normanking/axon/internal/tts"
)

// Connector carries an action's argument to its effector. Connect blocks
// until the effect is dispatched or ctx is done.
type Connector interface {
	Connect(ctx context.Context, input string) error
}

// Action is one instantiated agent action.
type Action struct {
	// Name is the command name the reasoning backend emits.
	Name string
	// Schema declares the action to the backend.
	Schema llm.ActionSchema
	// Connector performs the action.
	Connector Connector
}

// Invoke runs the action's connector. It satisfies hook.Invoker.
func (a *Action) Invoke(ctx context.Context, input string) error {
	return a.Connector.Connect(ctx, input)
}

// Config carries a manifest's settings and shared collaborators into an
// action constructor.
type Config struct {
	Name    string
	APIKey  string
	RobotIP string
	Mode    string
	TTS     *tts.Client
	Memory  *memory.Store
	Extra   map[string]any
}

// String reads a string setting from the manifest's extra config.
func (c Config) String(key, fallback string) string {
	if v, ok := c.Extra[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Factory builds an action from its config.
type Factory func(cfg Config) (*Action, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an action factory under a manifest type name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs an action by manifest type name.
func New(name string, cfg Config) (*Action, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", name)
	}
	return factory(cfg)
}
