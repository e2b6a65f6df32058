package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// exampleConfig is the starter agent written by WriteExample. It is a
// working two-mode setup a new deployment can edit in place.
var exampleConfig = map[string]any{
	"name":                   "fieldbot",
	"default_mode":           "idle",
	"allow_manual_switching": true,
	"mode_memory_enabled":    true,
	"system_governance":      "Be helpful, stay safe, and never move toward a person at speed.",
	"llm": map[string]any{
		"provider":        "openai",
		"model":           "gpt-4o-mini",
		"timeout_seconds": 30,
	},
	"modes": map[string]any{
		"idle": map[string]any{
			"display_name":       "Idle",
			"description":        "Waiting for a request",
			"system_prompt_base": "You are a helpful robot at rest. Answer briefly.",
			"hertz":              0.2,
			"inputs":             []any{map[string]any{"type": "speech"}},
			"actions":            []any{map[string]any{"type": "speak"}},
			"hooks": []any{
				map[string]any{
					"hook_type":    "on_entry",
					"handler_type": "message",
					"handler_config": map[string]any{
						"message": "Going idle.",
					},
				},
			},
		},
		"patrol": map[string]any{
			"display_name":       "Patrol",
			"description":        "Actively watching the area",
			"system_prompt_base": "You are patrolling. Report what you perceive.",
			"hertz":              1,
			"timeout_seconds":    1800,
			"save_interactions":  true,
			"remember_locations": true,
			"inputs":             []any{map[string]any{"type": "speech"}},
			"actions": []any{
				map[string]any{"type": "speak"},
				map[string]any{"type": "remember_location"},
			},
			"backgrounds": []any{
				map[string]any{
					"type":   "heartbeat",
					"config": map[string]any{"interval": 10},
				},
			},
		},
	},
	"transition_rules": []any{
		map[string]any{
			"from_mode":        "idle",
			"to_mode":          "patrol",
			"transition_type":  "input_triggered",
			"trigger_keywords": []any{"start patrol", "go patrol"},
			"priority":         5,
			"cooldown_seconds": 10,
		},
		// Fires when patrol's timeout_seconds expires.
		map[string]any{
			"from_mode":       "patrol",
			"to_mode":         "idle",
			"transition_type": "time_based",
		},
	},
}

// WriteExample writes a starter configuration to path. It refuses to
// overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(exampleConfig)
	if err != nil {
		return fmt.Errorf("encode example config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
