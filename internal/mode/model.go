// Package mode implements the mode state machine: definitions, transition
// rules, the manager that evaluates them, and snapshot persistence.
package mode

import (
	"fmt"
	"time"

	"github.com/normanking/axon/internal/hook"
	"github.com/normanking/axon/internal/llm"
)

// TransitionKind classifies what can trigger a transition rule.
type TransitionKind string

const (
	// InputTriggered fires when recent input text contains a keyword.
	InputTriggered TransitionKind = "input_triggered"
	// TimeBased fires after the current mode has been active too long.
	TimeBased TransitionKind = "time_based"
	// ContextAware fires when required user-context keys are present.
	ContextAware TransitionKind = "context_aware"
	// Manual only fires through an explicit switch request.
	Manual TransitionKind = "manual"
)

// WildcardMode in a rule's FromMode matches any current mode.
const WildcardMode = "*"

// Rule describes one permitted transition between modes.
type Rule struct {
	FromMode string         `mapstructure:"from_mode" yaml:"from_mode"`
	ToMode   string         `mapstructure:"to_mode" yaml:"to_mode"`
	Kind     TransitionKind `mapstructure:"transition_type" yaml:"transition_type"`
	// TriggerKeywords apply to input_triggered rules. Matching is
	// case-insensitive substring.
	TriggerKeywords []string `mapstructure:"trigger_keywords" yaml:"trigger_keywords"`
	// Priority breaks ties between rules matched in the same tick.
	// Higher wins.
	Priority int `mapstructure:"priority" yaml:"priority"`
	// Cooldown is the minimum gap between attempts of this rule,
	// in seconds.
	Cooldown float64 `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds"`
	// Timeout applies to time_based rules: seconds in the current mode
	// before the rule fires on its own clock, independent of the mode's
	// timeout. Zero defers to the mode-level timeout.
	Timeout float64 `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// ContextConditions lists user-context keys that must be present
	// for context_aware rules.
	ContextConditions []string `mapstructure:"context_conditions" yaml:"context_conditions"`
}

// CooldownKey identifies the rule in the manager's cooldown table.
func (r Rule) CooldownKey() string {
	return r.FromMode + "->" + r.ToMode
}

// Matches reports whether the rule applies from the given mode.
func (r Rule) Matches(from string) bool {
	return r.FromMode == from || r.FromMode == WildcardMode
}

// Manifest names a plugin type and its free-form configuration.
type Manifest struct {
	Type   string         `mapstructure:"type" yaml:"type"`
	Config map[string]any `mapstructure:"config" yaml:"config"`
}

// Definition is one configured mode: its prompt surface, its component
// graph, and its lifecycle hooks.
type Definition struct {
	Name        string `mapstructure:"name" yaml:"name"`
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`
	Description string `mapstructure:"description" yaml:"description"`

	// SystemPromptBase replaces the persona portion of the prompt while
	// this mode is active.
	SystemPromptBase string `mapstructure:"system_prompt_base" yaml:"system_prompt_base"`

	// Hertz is the tick rate of the perception loop in this mode.
	Hertz float64 `mapstructure:"hertz" yaml:"hertz"`

	// Timeout is how many seconds the mode may stay active before its
	// on_timeout hooks fire and time-based rules away from it become
	// eligible. Zero means the mode never expires.
	Timeout float64 `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

	LLM *llm.Config `mapstructure:"llm" yaml:"llm"`

	Inputs      []Manifest `mapstructure:"inputs" yaml:"inputs"`
	Actions     []Manifest `mapstructure:"actions" yaml:"actions"`
	Simulators  []Manifest `mapstructure:"simulators" yaml:"simulators"`
	Backgrounds []Manifest `mapstructure:"backgrounds" yaml:"backgrounds"`

	// SaveInteractions records each prompt/reply pair to the memory
	// store while this mode is active.
	SaveInteractions bool `mapstructure:"save_interactions" yaml:"save_interactions"`

	// RememberLocations lets the mode's remember_location action write
	// to the location store. A mode listing the action without this
	// flag gets it skipped at activation.
	RememberLocations bool `mapstructure:"remember_locations" yaml:"remember_locations"`

	Hooks []hook.Hook `mapstructure:"-" yaml:"-"`
}

// Title returns the name to show humans.
func (d Definition) Title() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

// SystemConfig is the full parsed agent configuration.
type SystemConfig struct {
	Name       string `mapstructure:"name" yaml:"name"`
	ConfigName string `mapstructure:"-" yaml:"-"`

	DefaultMode          string `mapstructure:"default_mode" yaml:"default_mode"`
	AllowManualSwitching bool   `mapstructure:"allow_manual_switching" yaml:"allow_manual_switching"`
	// ModeMemoryEnabled restores the last active mode from the snapshot
	// on startup.
	ModeMemoryEnabled bool `mapstructure:"mode_memory_enabled" yaml:"mode_memory_enabled"`

	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	RobotIP string `mapstructure:"robot_ip" yaml:"robot_ip"`

	// SystemGovernance holds the rules-of-conduct prompt fragment
	// shared by all modes.
	SystemGovernance     string `mapstructure:"system_governance" yaml:"system_governance"`
	SystemPromptExamples string `mapstructure:"system_prompt_examples" yaml:"system_prompt_examples"`

	// GlobalLLM is the fallback reasoning config for modes without
	// their own.
	GlobalLLM *llm.Config `mapstructure:"llm" yaml:"llm"`

	// GlobalHooks run at agent startup and shutdown.
	GlobalHooks []hook.Hook `mapstructure:"-" yaml:"-"`

	Modes map[string]*Definition `mapstructure:"-" yaml:"-"`
	Rules []Rule                 `mapstructure:"transition_rules" yaml:"transition_rules"`

	// StateDir is where mode snapshots are written.
	StateDir string `mapstructure:"-" yaml:"-"`
}

// Mode returns the definition for name, or an error naming the miss.
func (c *SystemConfig) Mode(name string) (*Definition, error) {
	d, ok := c.Modes[name]
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", name)
	}
	return d, nil
}

// DefaultHertz is the loop rate used when a mode does not set one.
const DefaultHertz = 0.5

// TickInterval converts a mode's hertz into a sleep duration.
func (d Definition) TickInterval() time.Duration {
	hz := d.Hertz
	if hz <= 0 {
		hz = DefaultHertz
	}
	return time.Duration(float64(time.Second) / hz)
}
