package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/axon/internal/hook"
	"github.com/normanking/axon/internal/mode"
)

const sampleConfig = `
name: fieldbot
default_mode: idle
allow_manual_switching: true
mode_memory_enabled: true
system_governance: "Never harm a human."
system_prompt_examples: "Example: speak('hello')"

llm:
  provider: openai
  base_url: https://api.openai.com/v1
  model: gpt-4o
  timeout_seconds: 30

hooks:
  - hook_type: on_startup
    handler_type: function
    handler_config:
      module_name: system
      function: log_event

modes:
  idle:
    display_name: Idle
    description: Waiting for something to do
    system_prompt_base: "You are resting."
    hertz: 0.2
    inputs:
      - type: speech
    actions:
      - type: speak
        config:
          voice: calm
    hooks:
      - hook_type: on_entry
        handler_type: message
        handler_config:
          message: "Going idle"
        priority: 5
  patrol:
    display_name: Patrol
    hertz: 1
    timeout_seconds: 900
    save_interactions: true
    remember_locations: true
    inputs:
      - type: speech
    actions:
      - type: speak
    backgrounds:
      - type: heartbeat
        config:
          interval: 5

transition_rules:
  - from_mode: idle
    to_mode: patrol
    transition_type: input_triggered
    trigger_keywords: ["start patrol"]
    priority: 5
    cooldown_seconds: 10
  - from_mode: patrol
    to_mode: idle
    transition_type: time_based
    timeout_seconds: 600
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "fieldbot", cfg.Name)
	assert.Equal(t, "fieldbot", cfg.ConfigName)
	assert.Equal(t, "idle", cfg.DefaultMode)
	assert.True(t, cfg.AllowManualSwitching)
	assert.True(t, cfg.ModeMemoryEnabled)
	assert.Equal(t, "Never harm a human.", cfg.SystemGovernance)

	require.NotNil(t, cfg.GlobalLLM)
	assert.Equal(t, "openai", cfg.GlobalLLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.GlobalLLM.Model)

	require.Len(t, cfg.GlobalHooks, 1)
	assert.Equal(t, hook.OnStartup, cfg.GlobalHooks[0].Type)

	require.Len(t, cfg.Modes, 2)
	idle := cfg.Modes["idle"]
	require.NotNil(t, idle)
	assert.Equal(t, "idle", idle.Name)
	assert.Equal(t, "Idle", idle.DisplayName)
	assert.Equal(t, 0.2, idle.Hertz)
	require.Len(t, idle.Inputs, 1)
	assert.Equal(t, "speech", idle.Inputs[0].Type)
	require.Len(t, idle.Actions, 1)
	assert.Equal(t, "calm", idle.Actions[0].Config["voice"])
	require.Len(t, idle.Hooks, 1)
	assert.Equal(t, 5, idle.Hooks[0].Priority)

	patrol := cfg.Modes["patrol"]
	require.NotNil(t, patrol)
	assert.True(t, patrol.SaveInteractions)
	assert.True(t, patrol.RememberLocations)
	assert.Equal(t, 900.0, patrol.Timeout)
	require.Len(t, patrol.Backgrounds, 1)

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, mode.InputTriggered, cfg.Rules[0].Kind)
	assert.Equal(t, 10.0, cfg.Rules[0].Cooldown)
	assert.Equal(t, mode.TimeBased, cfg.Rules[1].Kind)
	assert.Equal(t, 600.0, cfg.Rules[1].Timeout)
}

func TestLoadStateDirDerivedFromConfigPath(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "memory"), cfg.StateDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-from-env")
	t.Setenv(EnvRobotIP, "10.0.0.42")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.APIKey)
	assert.Equal(t, "10.0.0.42", cfg.RobotIP)
}

func TestLoadFileAPIKeyWins(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-from-env")

	cfg, err := Load(writeConfig(t, sampleConfig+"\napi_key: sk-from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", cfg.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mangle func(cfg *mode.SystemConfig)
	}{
		{"no name", func(c *mode.SystemConfig) { c.Name = "" }},
		{"no modes", func(c *mode.SystemConfig) { c.Modes = nil }},
		{"no default", func(c *mode.SystemConfig) { c.DefaultMode = "" }},
		{"unknown default", func(c *mode.SystemConfig) { c.DefaultMode = "ghost" }},
		{"rule to unknown mode", func(c *mode.SystemConfig) {
			c.Rules = append(c.Rules, mode.Rule{FromMode: "idle", ToMode: "ghost", Kind: mode.InputTriggered})
		}},
		{"rule from unknown mode", func(c *mode.SystemConfig) {
			c.Rules = append(c.Rules, mode.Rule{FromMode: "ghost", ToMode: "idle", Kind: mode.InputTriggered})
		}},
		{"rule with unknown kind", func(c *mode.SystemConfig) {
			c.Rules = append(c.Rules, mode.Rule{FromMode: "idle", ToMode: "patrol", Kind: "telepathic"})
		}},
		{"negative hertz", func(c *mode.SystemConfig) { c.Modes["idle"].Hertz = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleConfig))
			require.NoError(t, err)
			tc.mangle(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestWriteExampleLoadsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starter.yaml")
	require.NoError(t, WriteExample(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "idle", cfg.DefaultMode)
	assert.Len(t, cfg.Modes, 2)

	// Never clobber an existing file.
	assert.Error(t, WriteExample(path))
}

func TestValidateAcceptsWildcardRules(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	cfg.Rules = append(cfg.Rules, mode.Rule{
		FromMode: mode.WildcardMode,
		ToMode:   "idle",
		Kind:     mode.InputTriggered,
	})
	assert.NoError(t, Validate(cfg))
}
