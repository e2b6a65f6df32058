// Package inputs defines the sensor plugins a mode listens through. A
// sensor runs its own listen loop, buffers what it perceives, and hands the
// buffered events over when the runtime drains it each tick. Sensors are
// instantiated fresh from manifests on every mode activation.
package inputs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/normanking/axon/internal/bus"
)

// Event is one perceived item: text for fusion, plus whether it should wake
// the tick loop immediately.
type Event struct {
	Text   string
	Urgent bool
	At     time.Time
}

// Sensor is an input plugin. Listen blocks until ctx is done; it must
// tolerate cancellation mid-wait and release anything it opened.
type Sensor interface {
	// Name identifies the sensor in logs and fused prompts.
	Name() string

	// Listen runs the sensor's receive loop until ctx is cancelled.
	Listen(ctx context.Context) error

	// Drain returns events buffered since the last drain.
	Drain() []Event
}

// Config carries a manifest's settings into a sensor constructor, with the
// global credentials the runtime merges in.
type Config struct {
	Name    string
	APIKey  string
	RobotIP string
	Mode    string
	Bus     *bus.Bus
	// Wake, when set, is called on urgent events so the tick loop can
	// skip its sleep and react immediately.
	Wake  func()
	Extra map[string]any
}

// String reads a string setting from the manifest's extra config.
func (c Config) String(key, fallback string) string {
	if v, ok := c.Extra[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Factory builds a sensor from its config.
type Factory func(cfg Config) (Sensor, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a sensor factory under a manifest type name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs a sensor by manifest type name.
func New(name string, cfg Config) (Sensor, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown input type %q", name)
	}
	return factory(cfg)
}

// buffer is the shared event accumulator sensors embed.
type buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *buffer) push(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}
