// Package config loads and validates agent configuration files. A file
// describes one agent: its modes, transition rules, lifecycle hooks,
// and credentials. Environment variables override the secrets so config
// files can be committed without them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/normanking/axon/internal/hook"
	"github.com/normanking/axon/internal/llm"
	"github.com/normanking/axon/internal/mode"
)

// Environment overrides applied after the file is read.
const (
	EnvAPIKey  = "AXON_API_KEY"
	EnvRobotIP = "AXON_ROBOT_IP"
)

// fileConfig mirrors the YAML layout of an agent configuration.
type fileConfig struct {
	Name                 string `mapstructure:"name"`
	DefaultMode          string `mapstructure:"default_mode"`
	AllowManualSwitching bool   `mapstructure:"allow_manual_switching"`
	ModeMemoryEnabled    bool   `mapstructure:"mode_memory_enabled"`

	APIKey  string `mapstructure:"api_key"`
	RobotIP string `mapstructure:"robot_ip"`

	SystemGovernance     string `mapstructure:"system_governance"`
	SystemPromptExamples string `mapstructure:"system_prompt_examples"`

	LLM *fileLLM `mapstructure:"llm"`

	GlobalHooks []map[string]any `mapstructure:"hooks"`

	Modes map[string]fileMode `mapstructure:"modes"`
	Rules []mode.Rule         `mapstructure:"transition_rules"`
}

type fileMode struct {
	DisplayName      string  `mapstructure:"display_name"`
	Description      string  `mapstructure:"description"`
	SystemPromptBase string  `mapstructure:"system_prompt_base"`
	Hertz            float64 `mapstructure:"hertz"`
	TimeoutSeconds   float64 `mapstructure:"timeout_seconds"`

	LLM *fileLLM `mapstructure:"llm"`

	Inputs      []fileManifest `mapstructure:"inputs"`
	Actions     []fileManifest `mapstructure:"actions"`
	Simulators  []fileManifest `mapstructure:"simulators"`
	Backgrounds []fileManifest `mapstructure:"backgrounds"`

	SaveInteractions  bool `mapstructure:"save_interactions"`
	RememberLocations bool `mapstructure:"remember_locations"`

	Hooks []map[string]any `mapstructure:"hooks"`
}

type fileManifest struct {
	Type   string         `mapstructure:"type"`
	Config map[string]any `mapstructure:"config"`
}

type fileLLM struct {
	Provider       string  `mapstructure:"provider"`
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds"`
}

// Load reads, validates, and resolves an agent configuration file.
func Load(path string) (*mode.SystemConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &mode.SystemConfig{
		Name:                 fc.Name,
		ConfigName:           configName(path),
		DefaultMode:          fc.DefaultMode,
		AllowManualSwitching: fc.AllowManualSwitching,
		ModeMemoryEnabled:    fc.ModeMemoryEnabled,
		APIKey:               fc.APIKey,
		RobotIP:              fc.RobotIP,
		SystemGovernance:     fc.SystemGovernance,
		SystemPromptExamples: fc.SystemPromptExamples,
		GlobalLLM:            toLLMConfig(fc.LLM),
		GlobalHooks:          hook.Parse(fc.GlobalHooks),
		Modes:                map[string]*mode.Definition{},
		Rules:                fc.Rules,
		StateDir:             filepath.Join(filepath.Dir(path), "memory"),
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.RobotIP == "" {
		cfg.RobotIP = os.Getenv(EnvRobotIP)
	}

	for name, fm := range fc.Modes {
		cfg.Modes[name] = toDefinition(name, fm)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the cross-references a parsed config must satisfy.
func Validate(cfg *mode.SystemConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("agent has no name")
	}
	if len(cfg.Modes) == 0 {
		return fmt.Errorf("no modes defined")
	}
	if cfg.DefaultMode == "" {
		return fmt.Errorf("no default mode set")
	}
	if _, ok := cfg.Modes[cfg.DefaultMode]; !ok {
		return fmt.Errorf("default mode %q is not defined", cfg.DefaultMode)
	}
	for name, def := range cfg.Modes {
		if def.Hertz < 0 {
			return fmt.Errorf("mode %q has negative hertz", name)
		}
	}
	for _, r := range cfg.Rules {
		if r.ToMode == "" {
			return fmt.Errorf("transition rule from %q has no target", r.FromMode)
		}
		if _, ok := cfg.Modes[r.ToMode]; !ok {
			return fmt.Errorf("transition rule targets undefined mode %q", r.ToMode)
		}
		if r.FromMode != mode.WildcardMode {
			if _, ok := cfg.Modes[r.FromMode]; !ok {
				return fmt.Errorf("transition rule leaves undefined mode %q", r.FromMode)
			}
		}
		switch r.Kind {
		case mode.InputTriggered, mode.TimeBased, mode.ContextAware, mode.Manual:
		default:
			return fmt.Errorf("transition rule %s has unknown type %q", r.CooldownKey(), r.Kind)
		}
	}
	return nil
}

func toDefinition(name string, fm fileMode) *mode.Definition {
	return &mode.Definition{
		Name:              name,
		DisplayName:       fm.DisplayName,
		Description:       fm.Description,
		SystemPromptBase:  fm.SystemPromptBase,
		Hertz:             fm.Hertz,
		Timeout:           fm.TimeoutSeconds,
		LLM:               toLLMConfig(fm.LLM),
		Inputs:            toManifests(fm.Inputs),
		Actions:           toManifests(fm.Actions),
		Simulators:        toManifests(fm.Simulators),
		Backgrounds:       toManifests(fm.Backgrounds),
		SaveInteractions:  fm.SaveInteractions,
		RememberLocations: fm.RememberLocations,
		Hooks:             hook.Parse(fm.Hooks),
	}
}

func toManifests(in []fileManifest) []mode.Manifest {
	out := make([]mode.Manifest, 0, len(in))
	for _, m := range in {
		out = append(out, mode.Manifest{Type: m.Type, Config: m.Config})
	}
	return out
}

func toLLMConfig(in *fileLLM) *llm.Config {
	if in == nil {
		return nil
	}
	return &llm.Config{
		Provider: in.Provider,
		BaseURL:  in.BaseURL,
		APIKey:   in.APIKey,
		Model:    in.Model,
		Timeout:  time.Duration(in.TimeoutSeconds * float64(time.Second)),
	}
}

// configName derives the snapshot identity from the file name.
func configName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
