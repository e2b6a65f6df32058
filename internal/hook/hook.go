// Package hook implements the lifecycle hook engine. Hooks are declarative
// side effects attached to mode entry, exit, startup, shutdown, and timeout.
// They are parsed from configuration, ordered by priority, and executed
// sequentially with per-hook timeouts and an ignore/abort failure policy.
package hook

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Type categorizes when a hook fires.
type Type string

const (
	OnEntry    Type = "on_entry"
	OnExit     Type = "on_exit"
	OnStartup  Type = "on_startup"
	OnShutdown Type = "on_shutdown"
	OnTimeout  Type = "on_timeout"
)

// HandlerKind selects how a hook executes.
type HandlerKind string

const (
	// KindMessage formats a template and speaks it via the TTS announcer.
	KindMessage HandlerKind = "message"
	// KindCommand runs an external shell command.
	KindCommand HandlerKind = "command"
	// KindFunction calls a registered in-process function.
	KindFunction HandlerKind = "function"
	// KindAction invokes a named agent action's connector.
	KindAction HandlerKind = "action"
)

// FailurePolicy governs what a failed hook does to the rest of its batch.
type FailurePolicy string

const (
	// FailureIgnore records the failure and continues with the next hook.
	FailureIgnore FailurePolicy = "ignore"
	// FailureAbort stops the whole batch immediately.
	FailureAbort FailurePolicy = "abort"
)

// DefaultTimeout bounds a single hook's execution when none is configured.
const DefaultTimeout = 5 * time.Second

// Hook is one parsed lifecycle hook declaration.
type Hook struct {
	Type          Type
	Kind          HandlerKind
	HandlerConfig map[string]any
	Async         bool
	Timeout       time.Duration
	OnFailure     FailurePolicy
	Priority      int
}

// Context carries the key/value pairs hooks format messages and commands
// against. It is copied before each batch so hooks cannot leak state into
// later batches.
type Context map[string]any

// clone returns a shallow copy of the context.
func (c Context) clone() Context {
	out := make(Context, len(c)+2)
	for k, v := range c {
		out[k] = v
	}
	return out
}

var validTypes = map[Type]bool{
	OnEntry:    true,
	OnExit:     true,
	OnStartup:  true,
	OnShutdown: true,
	OnTimeout:  true,
}

var validKinds = map[HandlerKind]bool{
	KindMessage:  true,
	KindCommand:  true,
	KindFunction: true,
	KindAction:   true,
}

// Parse converts raw hook declarations into Hooks. A malformed entry is
// logged and skipped; it never blocks the remaining entries from loading.
func Parse(raw []map[string]any) []Hook {
	hooks := make([]Hook, 0, len(raw))
	for i, entry := range raw {
		h, err := parseOne(entry)
		if err != nil {
			log.Error().Err(err).Int("index", i).Msg("skipping malformed lifecycle hook")
			continue
		}
		hooks = append(hooks, h)
	}
	return hooks
}

func parseOne(entry map[string]any) (Hook, error) {
	rawType, ok := entry["hook_type"].(string)
	if !ok {
		return Hook{}, fmt.Errorf("missing hook_type")
	}
	t := Type(rawType)
	if !validTypes[t] {
		return Hook{}, fmt.Errorf("unknown hook_type %q", rawType)
	}

	rawKind, ok := entry["handler_type"].(string)
	if !ok {
		return Hook{}, fmt.Errorf("missing handler_type")
	}
	kind := HandlerKind(rawKind)
	if !validKinds[kind] {
		return Hook{}, fmt.Errorf("unknown handler_type %q", rawKind)
	}

	h := Hook{
		Type:      t,
		Kind:      kind,
		Async:     true,
		Timeout:   DefaultTimeout,
		OnFailure: FailureIgnore,
	}

	if cfg, ok := entry["handler_config"].(map[string]any); ok {
		h.HandlerConfig = cfg
	} else {
		h.HandlerConfig = map[string]any{}
	}
	if async, ok := entry["async_execution"].(bool); ok {
		h.Async = async
	}
	if secs, ok := toFloat(entry["timeout_seconds"]); ok {
		h.Timeout = time.Duration(secs * float64(time.Second))
	}
	if policy, ok := entry["on_failure"].(string); ok {
		switch FailurePolicy(policy) {
		case FailureIgnore, FailureAbort:
			h.OnFailure = FailurePolicy(policy)
		default:
			return Hook{}, fmt.Errorf("unknown on_failure policy %q", policy)
		}
	}
	if prio, ok := toFloat(entry["priority"]); ok {
		h.Priority = int(prio)
	}

	return h, nil
}

// toFloat accepts the numeric types YAML and JSON decoders produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
