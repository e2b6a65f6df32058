package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/normanking/axon/internal/llm"
	"github.com/normanking/axon/internal/memory"
)

// TypeRememberLocation is the manifest type of the location-memory
// action. Modes must also set remember_locations for it to activate.
const TypeRememberLocation = "remember_location"

// locationConnector writes a named place into the memory store. The
// argument is "name: detail"; detail is optional.
type locationConnector struct {
	store *memory.Store
	mode  string
}

func (c *locationConnector) Connect(ctx context.Context, input string) error {
	name, detail, _ := strings.Cut(input, ":")
	name = strings.TrimSpace(name)
	detail = strings.TrimSpace(detail)
	if name == "" {
		return fmt.Errorf("remember_location needs a location name")
	}
	return c.store.RememberLocation(ctx, name, detail, c.mode)
}

// NewRememberLocation creates the remember-location action. It requires
// the memory store, so it is only available in modes wired with one.
func NewRememberLocation(cfg Config) (*Action, error) {
	if cfg.Memory == nil {
		return nil, fmt.Errorf("remember_location requires a memory store")
	}
	return &Action{
		Name: TypeRememberLocation,
		Schema: llm.ActionSchema{
			Name:        TypeRememberLocation,
			Description: "Remember the robot's current place under a name for later navigation.",
			Argument:    "Location name, optionally followed by a colon and detail.",
		},
		Connector: &locationConnector{store: cfg.Memory, mode: cfg.Mode},
	}, nil
}

func init() {
	Register(TypeRememberLocation, NewRememberLocation)
}
