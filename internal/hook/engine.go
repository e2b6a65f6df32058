package hook

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Engine executes hook batches. It holds the collaborators handlers need:
// the TTS announcer for message hooks and the action resolver for action
// hooks. A zero Engine works; message and action hooks then fail cleanly.
type Engine struct {
	Announcer Announcer
	Resolver  InvokerResolver

	// Action hook connectors are constructed once per action type and
	// reused across batches.
	invokersMu sync.Mutex
	invokers   map[string]Invoker
}

// NewEngine creates a hook engine with the given collaborators.
func NewEngine(announcer Announcer, resolver InvokerResolver) *Engine {
	return &Engine{Announcer: announcer, Resolver: resolver}
}

// resolveInvoker returns the cached connector for an action type, building
// it on first use.
func (e *Engine) resolveInvoker(actionType string, config map[string]any) (Invoker, error) {
	e.invokersMu.Lock()
	defer e.invokersMu.Unlock()

	if inv, ok := e.invokers[actionType]; ok {
		return inv, nil
	}
	if e.Resolver == nil {
		return nil, fmt.Errorf("no action resolver configured")
	}
	inv, err := e.Resolver(actionType, config)
	if err != nil {
		return nil, err
	}
	if e.invokers == nil {
		e.invokers = make(map[string]Invoker)
	}
	e.invokers[actionType] = inv
	return inv, nil
}

// Execute runs every hook of the requested type, in descending priority
// order (stable for ties), strictly sequentially. It returns true only if
// every executed hook succeeded. A hook failure under the abort policy stops
// the batch; under ignore the batch continues but the result is false.
func (e *Engine) Execute(ctx context.Context, hooks []Hook, t Type, hctx Context) bool {
	if hctx == nil {
		hctx = Context{}
	}
	hctx = hctx.clone()
	hctx["hook_type"] = string(t)

	batch := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h.Type == t {
			batch = append(batch, h)
		}
	}
	if len(batch) == 0 {
		return true
	}
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Priority > batch[j].Priority
	})

	log.Info().Int("count", len(batch)).Str("hook_type", string(t)).Msg("executing lifecycle hooks")

	ok := true
	for _, h := range batch {
		if err := e.runOne(ctx, h, hctx); err != nil {
			log.Error().Err(err).
				Str("hook_type", string(t)).
				Str("handler", string(h.Kind)).
				Msg("lifecycle hook failed")
			ok = false
			if h.OnFailure == FailureAbort {
				log.Error().Msg("lifecycle hook failed with abort policy, stopping batch")
				return false
			}
		}
	}
	return ok
}

// runOne builds the handler for a hook and races it against the hook's
// timeout. A timeout counts as a failure like any other.
func (e *Engine) runOne(ctx context.Context, h Hook, hctx Context) error {
	handler, err := e.newHandler(h)
	if err != nil {
		return err
	}

	if h.Timeout <= 0 {
		return execute(ctx, handler, hctx)
	}

	timed, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- execute(timed, handler, hctx)
	}()

	select {
	case err := <-done:
		return err
	case <-timed.Done():
		return fmt.Errorf("hook timed out after %s: %w", h.Timeout, timed.Err())
	}
}

// execute shields the engine from a panicking handler.
func execute(ctx context.Context, handler Handler, hctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook handler panicked: %v", r)
		}
	}()
	return handler.Execute(ctx, hctx)
}

func (e *Engine) newHandler(h Hook) (Handler, error) {
	switch h.Kind {
	case KindMessage:
		return &messageHandler{config: h.HandlerConfig, announcer: e.Announcer}, nil
	case KindCommand:
		return &commandHandler{config: h.HandlerConfig}, nil
	case KindFunction:
		return &functionHandler{config: h.HandlerConfig}, nil
	case KindAction:
		return &actionHandler{config: h.HandlerConfig, resolve: e.resolveInvoker}, nil
	default:
		return nil, fmt.Errorf("unknown hook handler type %q", h.Kind)
	}
}
