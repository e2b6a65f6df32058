package hook

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Handler executes one hook. A nil error means success; an error is a hook
// failure subject to the hook's failure policy.
type Handler interface {
	Execute(ctx context.Context, hctx Context) error
}

// Announcer speaks a message to the operator. The TTS client satisfies this.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// Invoker is a constructed agent action connector usable from an action hook.
type Invoker interface {
	Invoke(ctx context.Context, input string) error
}

// InvokerResolver constructs an Invoker for a named action type. The action
// registry satisfies this without the hook engine depending on it.
type InvokerResolver func(actionType string, config map[string]any) (Invoker, error)

// messageHandler formats a template against the context and forwards it to
// the announcer.
type messageHandler struct {
	config    map[string]any
	announcer Announcer
}

func (h *messageHandler) Execute(ctx context.Context, hctx Context) error {
	template, _ := h.config["message"].(string)
	if template == "" {
		return nil
	}

	text, err := formatTemplate(template, hctx)
	if err != nil {
		return err
	}
	log.Info().Str("message", text).Msg("lifecycle hook message")

	if h.announcer == nil {
		return fmt.Errorf("no announcer configured for message hook")
	}
	if err := h.announcer.Announce(ctx, text); err != nil {
		return fmt.Errorf("announce message: %w", err)
	}
	return nil
}

// commandHandler runs an external shell command. Non-zero exit is a failure.
type commandHandler struct {
	config map[string]any
}

func (h *commandHandler) Execute(ctx context.Context, hctx Context) error {
	template, _ := h.config["command"].(string)
	if template == "" {
		return fmt.Errorf("no command specified for command hook")
	}

	command, err := formatTemplate(template, hctx)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Str("command", command).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("hook command failed")
		return fmt.Errorf("hook command: %w", err)
	}

	if out := strings.TrimSpace(stdout.String()); out != "" {
		log.Info().Str("output", out).Msg("hook command output")
	}
	return nil
}

// functionHandler calls a function from the static hook function registry,
// addressed by module and function name.
type functionHandler struct {
	config map[string]any
}

func (h *functionHandler) Execute(ctx context.Context, hctx Context) error {
	module, _ := h.config["module_name"].(string)
	function, _ := h.config["function"].(string)

	if function == "" {
		return fmt.Errorf("no function specified for function hook")
	}
	if module == "" {
		return fmt.Errorf("no module_name specified for function hook")
	}

	fn, ok := LookupFunc(module, function)
	if !ok {
		return fmt.Errorf("function %s.%s not registered", module, function)
	}
	if err := fn(ctx, hctx); err != nil {
		return fmt.Errorf("hook function %s.%s: %w", module, function, err)
	}
	return nil
}

// actionHandler invokes an agent action's connector. The engine constructs
// the connector once per action type and reuses it across batches.
type actionHandler struct {
	config  map[string]any
	resolve InvokerResolver
}

func (h *actionHandler) Execute(ctx context.Context, hctx Context) error {
	actionType, _ := h.config["action_type"].(string)
	if actionType == "" {
		return fmt.Errorf("no action_type specified for action hook")
	}

	actionConfig, _ := h.config["action_config"].(map[string]any)
	invoker, err := h.resolve(actionType, actionConfig)
	if err != nil {
		return fmt.Errorf("load action for lifecycle hook: %w", err)
	}

	input, _ := hctx["input_data"].(string)
	if err := invoker.Invoke(ctx, input); err != nil {
		return fmt.Errorf("lifecycle action: %w", err)
	}
	return nil
}

// formatTemplate substitutes {key} placeholders from the context. A
// placeholder with no matching context key is a failure.
func formatTemplate(template string, hctx Context) (string, error) {
	var sb strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}

		sb.WriteString(rest[:open])
		key := rest[open+1 : open+closing]
		val, ok := hctx[key]
		if !ok {
			return "", fmt.Errorf("template key %q not in context", key)
		}
		fmt.Fprintf(&sb, "%v", val)
		rest = rest[open+closing+1:]
	}
}
