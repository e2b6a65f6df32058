package runtime

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/normanking/axon/internal/actions"
	"github.com/normanking/axon/internal/backgrounds"
	"github.com/normanking/axon/internal/bus"
	"github.com/normanking/axon/internal/inputs"
	"github.com/normanking/axon/internal/llm"
	"github.com/normanking/axon/internal/memory"
	"github.com/normanking/axon/internal/mode"
	"github.com/normanking/axon/internal/simulators"
	"github.com/normanking/axon/internal/tts"
)

// Deps are the shared collaborators injected into every component
// graph. They outlive individual modes.
type Deps struct {
	Bus    *bus.Bus
	TTS    *tts.Client
	Memory *memory.Store

	// wake is set by the runtime so urgent input skips the tick sleep.
	wake func()
}

// Graph is the set of live components for one mode activation. A graph
// is built fresh each time a mode becomes active and discarded when it
// is left.
type Graph struct {
	Def *mode.Definition

	Sensors     []inputs.Sensor
	Actions     map[string]*actions.Action
	Simulators  []simulators.Simulator
	Backgrounds []backgrounds.Background
	LLM         llm.Provider
}

// buildGraph instantiates every component a mode's manifests name.
// Actions are built before the provider so their schemas can be
// declared to it.
func buildGraph(cfg *mode.SystemConfig, def *mode.Definition, deps Deps) (*Graph, error) {
	g := &Graph{Def: def, Actions: map[string]*actions.Action{}}

	for _, m := range def.Actions {
		if m.Type == actions.TypeRememberLocation && !def.RememberLocations {
			log.Warn().
				Str("mode", def.Name).
				Msg("remember_location listed but remember_locations is off, skipping")
			continue
		}
		a, err := actions.New(m.Type, actions.Config{
			Name:    m.Type,
			APIKey:  cfg.APIKey,
			RobotIP: cfg.RobotIP,
			Mode:    def.Name,
			TTS:     deps.TTS,
			Memory:  deps.Memory,
			Extra:   m.Config,
		})
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", def.Name, err)
		}
		g.Actions[a.Name] = a
	}

	for _, m := range def.Inputs {
		s, err := inputs.New(m.Type, inputs.Config{
			Name:    m.Type,
			APIKey:  cfg.APIKey,
			RobotIP: cfg.RobotIP,
			Mode:    def.Name,
			Bus:     deps.Bus,
			Wake:    deps.wake,
			Extra:   m.Config,
		})
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", def.Name, err)
		}
		g.Sensors = append(g.Sensors, s)
	}

	for _, m := range def.Simulators {
		s, err := simulators.New(m.Type, simulators.Config{
			Name:  m.Type,
			Mode:  def.Name,
			Bus:   deps.Bus,
			Extra: m.Config,
		})
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", def.Name, err)
		}
		g.Simulators = append(g.Simulators, s)
	}

	for _, m := range def.Backgrounds {
		b, err := backgrounds.New(m.Type, backgrounds.Config{
			Name:  m.Type,
			Mode:  def.Name,
			Bus:   deps.Bus,
			Extra: m.Config,
		})
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", def.Name, err)
		}
		g.Backgrounds = append(g.Backgrounds, b)
	}

	p, err := buildProvider(cfg, def, g)
	if err != nil {
		return nil, err
	}
	g.LLM = p
	return g, nil
}

// buildProvider picks the mode's reasoning config, falling back to the
// global one, and binds the built action schemas to it.
func buildProvider(cfg *mode.SystemConfig, def *mode.Definition, g *Graph) (llm.Provider, error) {
	src := def.LLM
	if src == nil {
		src = cfg.GlobalLLM
	}
	if src == nil {
		return nil, fmt.Errorf("mode %s has no reasoning backend and no global one is configured", def.Name)
	}
	lcfg := *src
	if lcfg.APIKey == "" {
		lcfg.APIKey = cfg.APIKey
	}
	lcfg.AgentName = cfg.Name
	lcfg.SystemPrompt = composePrompt(cfg, def)
	lcfg.Actions = nil
	for _, a := range g.Actions {
		lcfg.Actions = append(lcfg.Actions, a.Schema)
	}
	provider := lcfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return llm.New(provider, lcfg)
}

// composePrompt assembles the persona the backend reasons under:
// governance rules first, then the mode's own prompt base, then the
// shared examples.
func composePrompt(cfg *mode.SystemConfig, def *mode.Definition) string {
	var parts []string
	if cfg.SystemGovernance != "" {
		parts = append(parts, cfg.SystemGovernance)
	}
	if def.SystemPromptBase != "" {
		parts = append(parts, def.SystemPromptBase)
	}
	if cfg.SystemPromptExamples != "" {
		parts = append(parts, cfg.SystemPromptExamples)
	}
	return strings.Join(parts, "\n\n")
}
