package hook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	hooks := Parse([]map[string]any{{
		"hook_type":    "on_entry",
		"handler_type": "message",
		"handler_config": map[string]any{
			"message": "hi",
		},
	}})
	require.Len(t, hooks, 1)

	h := hooks[0]
	assert.Equal(t, OnEntry, h.Type)
	assert.Equal(t, KindMessage, h.Kind)
	assert.Equal(t, DefaultTimeout, h.Timeout)
	assert.Equal(t, FailureIgnore, h.OnFailure)
	assert.True(t, h.Async)
	assert.Equal(t, 0, h.Priority)
	assert.Equal(t, "hi", h.HandlerConfig["message"])
}

func TestParseExplicitFields(t *testing.T) {
	hooks := Parse([]map[string]any{{
		"hook_type":       "on_exit",
		"handler_type":    "command",
		"handler_config":  map[string]any{"command": "true"},
		"timeout_seconds": 2.5,
		"on_failure":      "abort",
		"priority":        7,
		"async_execution": false,
	}})
	require.Len(t, hooks, 1)

	h := hooks[0]
	assert.Equal(t, OnExit, h.Type)
	assert.Equal(t, KindCommand, h.Kind)
	assert.Equal(t, 2500*time.Millisecond, h.Timeout)
	assert.Equal(t, FailureAbort, h.OnFailure)
	assert.Equal(t, 7, h.Priority)
	assert.False(t, h.Async)
}

func TestParseSkipsMalformed(t *testing.T) {
	valid := map[string]any{
		"hook_type":      "on_entry",
		"handler_type":   "function",
		"handler_config": map[string]any{"module_name": "m", "function": "f"},
	}
	hooks := Parse([]map[string]any{
		{"handler_type": "message"},                            // no hook_type
		{"hook_type": "on_entry"},                              // no handler_type
		{"hook_type": "on_warp", "handler_type": "message"},    // bad type
		{"hook_type": "on_entry", "handler_type": "telepathy"}, // bad kind
		valid,
		{"hook_type": "on_entry", "handler_type": "message", "on_failure": "retry"}, // bad policy
	})
	require.Len(t, hooks, 1)
	assert.Equal(t, KindFunction, hooks[0].Kind)
}

func TestParseYAMLNumericTypes(t *testing.T) {
	// YAML decoders hand over ints, JSON hands over float64s; both must
	// land in the same place.
	hooks := Parse([]map[string]any{
		{"hook_type": "on_entry", "handler_type": "message", "priority": int64(3), "timeout_seconds": 1},
		{"hook_type": "on_entry", "handler_type": "message", "priority": float64(4)},
	})
	require.Len(t, hooks, 2)
	assert.Equal(t, 3, hooks[0].Priority)
	assert.Equal(t, time.Second, hooks[0].Timeout)
	assert.Equal(t, 4, hooks[1].Priority)
}
