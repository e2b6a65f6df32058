// Package runtime drives the perception, reasoning, and action loop of
// the agent and swaps component graphs when the active mode changes.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/axon/internal/hook"
	"github.com/normanking/axon/internal/llm"
	"github.com/normanking/axon/internal/mode"
)

// shutdownGrace bounds how long shutdown hooks may run once the main
// context is cancelled.
const shutdownGrace = 15 * time.Second

// Runtime owns the tick loop. All mode evaluation and graph swapping
// happens on the goroutine running Run; other goroutines reach it only
// through the manager's request channel and the bus.
type Runtime struct {
	cfg  *mode.SystemConfig
	mgr  *mode.Manager
	deps Deps

	graph *Graph
	tasks *taskGroup
	tick  *ticker
	fuse  fuser

	pendingMu sync.Mutex
	pending   []string

	fatal error
}

// New assembles a runtime around a validated manager. Hook execution
// goes through the manager so mode and global context injection stays
// in one place.
func New(cfg *mode.SystemConfig, mgr *mode.Manager, deps Deps) *Runtime {
	r := &Runtime{
		cfg:   cfg,
		mgr:   mgr,
		deps:  deps,
		tasks: newTaskGroup(),
		tick:  newTicker(),
	}
	r.deps.wake = r.tick.SkipNext
	return r
}

// Run executes the agent until ctx is cancelled or a mode activation
// fails. Startup order: global startup hooks, wire controller, initial
// mode activation, then the tick loop.
func (r *Runtime) Run(ctx context.Context) error {
	current := r.mgr.State().Current()
	log.Info().Str("agent", r.cfg.Name).Str("mode", current).Msg("runtime starting")

	r.mgr.RunGlobalHooks(ctx, hook.OnStartup, hook.Context{"mode": current})

	ctrl := mode.NewController(r.mgr, r.deps.Bus)
	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		ctrl.Run(ctx)
	}()

	// The initial mode's hooks fire before its subsystem tasks start,
	// so hooks observe a quiet graph.
	def := r.mgr.CurrentDefinition()
	if err := r.activate(ctx, def); err != nil {
		return fmt.Errorf("activate initial mode %s: %w", def.Name, err)
	}
	hctx := hook.Context{"to_mode": def.Name, "reason": "startup"}
	r.mgr.RunModeHooks(ctx, def, hook.OnStartup, hctx)
	r.mgr.RunModeHooks(ctx, def, hook.OnEntry, hctx)
	r.startTasks(ctx)

	// Transitions rebuild the graph on this same goroutine, since they
	// only ever execute inside step below.
	cbID := r.mgr.AddTransitionCallback(func(from, to, reason string) {
		r.swapGraph(ctx, to)
	})
	defer r.mgr.RemoveTransitionCallback(cbID)

	for ctx.Err() == nil && r.fatal == nil {
		r.step(ctx)
		if ctx.Err() != nil || r.fatal != nil {
			break
		}
		r.tick.Wait(ctx, r.graph.Def.TickInterval())
	}

	r.shutdown()
	<-ctrlDone
	return r.fatal
}

// activate builds the component graph for a mode.
func (r *Runtime) activate(ctx context.Context, def *mode.Definition) error {
	g, err := buildGraph(r.cfg, def, r.deps)
	if err != nil {
		return err
	}
	r.graph = g
	return nil
}

// startTasks spawns the supervisory task for every live component of
// the current graph.
func (r *Runtime) startTasks(ctx context.Context) {
	g := r.graph
	def := g.Def
	for _, s := range g.Sensors {
		sensor := s
		r.tasks.spawn(ctx, def.Name+"/input/"+sensor.Name(), sensor.Listen)
	}
	for _, sim := range g.Simulators {
		simulator := sim
		r.tasks.spawn(ctx, def.Name+"/simulator/"+simulator.Name(), simulator.Run)
	}
	for _, bg := range g.Backgrounds {
		background := bg
		r.tasks.spawn(ctx, def.Name+"/background/"+background.Name(), background.Run)
	}
	log.Info().
		Str("mode", def.Name).
		Int("inputs", len(g.Sensors)).
		Int("actions", len(g.Actions)).
		Msg("component graph started")
}

// swapGraph tears the old graph down completely before the new one is
// instantiated. A build failure here leaves the agent without a working
// graph, which is fatal.
func (r *Runtime) swapGraph(ctx context.Context, to string) {
	r.tasks.stop()
	r.clearPending()
	def, err := r.cfg.Mode(to)
	if err != nil {
		r.fatal = err
		return
	}
	if err := r.activate(ctx, def); err != nil {
		r.fatal = fmt.Errorf("activate mode %s: %w", to, err)
		return
	}
	r.startTasks(ctx)
}

// step runs one perception-reasoning-action cycle. A panic in any
// component is contained so a bad tick does not take the agent down.
func (r *Runtime) step(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Any("panic", rec).Msg("tick panicked")
		}
	}()

	r.drainRequests(ctx)
	if r.fatal != nil {
		return
	}
	r.tasks.drainErrors()

	results := r.flushResults()
	events, combined := r.drainSensors()

	if r.mgr.EvaluateTick(ctx, combined) {
		// The graph just changed under us; start fresh next tick.
		return
	}
	if r.fatal != nil {
		return
	}

	prompt := r.fuse.Fuse(events, results)
	if prompt == "" {
		return
	}

	reply, err := r.graph.LLM.Ask(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("provider", r.graph.LLM.Name()).Msg("reasoning failed")
		return
	}
	log.Debug().
		Str("mode", r.graph.Def.Name).
		Int("commands", len(reply.Commands)).
		Dur("took", reply.Duration).
		Msg("reasoned")

	if r.graph.Def.SaveInteractions && r.deps.Memory != nil {
		if err := r.deps.Memory.SaveInteraction(ctx, r.graph.Def.Name, prompt, reply.Content); err != nil {
			log.Warn().Err(err).Msg("interaction save failed")
		}
	}

	r.dispatch(ctx, reply.Commands)
}

// drainRequests services wire-originated switch requests on the loop
// goroutine.
func (r *Runtime) drainRequests(ctx context.Context) {
	for {
		select {
		case req := <-r.mgr.Requests():
			r.mgr.HandleRequest(ctx, req)
			if r.fatal != nil {
				return
			}
		default:
			return
		}
	}
}

// drainSensors empties every sensor buffer and concatenates the texts
// for transition evaluation.
func (r *Runtime) drainSensors() ([]sensorEvents, string) {
	var all []sensorEvents
	var combined []string
	for _, s := range r.graph.Sensors {
		evs := s.Drain()
		if len(evs) == 0 {
			continue
		}
		all = append(all, sensorEvents{sensor: s.Name(), events: evs})
		for _, ev := range evs {
			combined = append(combined, ev.Text)
		}
	}
	return all, strings.Join(combined, " ")
}

// dispatch fans commands out to their actions. Invocations run off the
// loop goroutine; their outcomes are fused into the next prompt.
func (r *Runtime) dispatch(ctx context.Context, cmds []llm.Command) {
	graph := r.graph
	for _, cmd := range cmds {
		action, ok := graph.Actions[cmd.Name]
		if !ok {
			log.Warn().Str("action", cmd.Name).Msg("backend requested unknown action")
			r.addResult(cmd.Name + ": unknown action")
			continue
		}
		c := cmd
		a := action
		go func() {
			if err := a.Invoke(ctx, c.Argument); err != nil {
				log.Warn().Str("action", c.Name).Err(err).Msg("action failed")
				r.addResult(c.Name + " failed: " + err.Error())
				return
			}
			r.addResult(c.Name + ": done")
		}()
	}
	for _, sim := range graph.Simulators {
		sim.Simulate(cmds)
	}
}

func (r *Runtime) addResult(s string) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	r.pending = append(r.pending, s)
}

func (r *Runtime) flushResults() []string {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}

func (r *Runtime) clearPending() {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	r.pending = nil
}

// shutdown runs mode and global shutdown hooks under a grace period,
// then stops the component graph.
func (r *Runtime) shutdown() {
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	current := r.mgr.State().Current()
	hctx := hook.Context{"mode": current, "reason": "shutdown"}
	if def, err := r.cfg.Mode(current); err == nil {
		r.mgr.RunModeHooks(sctx, def, hook.OnShutdown, hctx)
	}
	r.mgr.RunGlobalHooks(sctx, hook.OnShutdown, hctx)

	r.tasks.stop()
	log.Info().Str("agent", r.cfg.Name).Msg("runtime stopped")
}
