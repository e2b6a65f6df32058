package mode

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/axon/internal/hook"
)

// Reasons recorded in transition history and passed to hooks.
const (
	ReasonManual  = "manual"
	ReasonTimeout = "timeout"
	ReasonInput   = "input_triggered"
	ReasonContext = "context"
)

// TransitionCallback observes completed transitions.
type TransitionCallback func(from, to, reason string)

// SwitchRequest is a transition request handed from another goroutine
// to the evaluation loop. Resolve must be called exactly once.
type SwitchRequest struct {
	Target string
	Reason string
	reply  chan bool
}

// Resolve reports the transition outcome to the requester.
func (r *SwitchRequest) Resolve(ok bool) {
	select {
	case r.reply <- ok:
	default:
	}
}

// Manager owns the mode state machine. All transition evaluation and
// execution happens on a single goroutine (the runtime tick loop);
// other goroutines hand requests over via Submit.
type Manager struct {
	cfg    *SystemConfig
	engine *hook.Engine
	store  *Store
	state  *State

	// cooldowns records the last attempt time per rule key. Recorded
	// when an attempt starts, so failed transitions cool down too.
	cooldowns map[string]time.Time

	requests chan *SwitchRequest

	callbackMu sync.Mutex
	callbacks  map[int]TransitionCallback
	nextCB     int

	// now is swapped in tests.
	now func() time.Time
}

// NewManager validates the config, restores the persisted mode when
// mode memory is enabled, and returns a manager positioned in its
// starting mode.
func NewManager(cfg *SystemConfig, engine *hook.Engine) (*Manager, error) {
	if cfg.DefaultMode == "" {
		return nil, fmt.Errorf("config %q has no default mode", cfg.Name)
	}
	if _, ok := cfg.Modes[cfg.DefaultMode]; !ok {
		return nil, fmt.Errorf("default mode %q is not defined", cfg.DefaultMode)
	}
	m := &Manager{
		cfg:       cfg,
		engine:    engine,
		store:     NewStore(cfg.StateDir, cfg.ConfigName),
		cooldowns: map[string]time.Time{},
		requests:  make(chan *SwitchRequest, 8),
		callbacks: map[int]TransitionCallback{},
		now:       time.Now,
	}
	initial := cfg.DefaultMode
	var snap *Snapshot
	if cfg.ModeMemoryEnabled {
		snap = m.restorableSnapshot()
		if snap != nil {
			initial = snap.LastActiveMode
		}
	}
	m.state = NewState(initial, m.now())
	if snap != nil {
		m.state.restore(snap.PreviousMode, snap.TransitionHistory)
	}
	return m, nil
}

// restorableSnapshot returns the persisted snapshot when it is worth
// restoring. The default mode is never restored since startup lands
// there anyway, and a mode removed from the config falls back with a
// warning.
func (m *Manager) restorableSnapshot() *Snapshot {
	snap, err := m.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("mode snapshot unreadable, starting in default mode")
		return nil
	}
	if snap == nil || snap.LastActiveMode == "" || snap.LastActiveMode == m.cfg.DefaultMode {
		return nil
	}
	if _, ok := m.cfg.Modes[snap.LastActiveMode]; !ok {
		log.Warn().
			Str("mode", snap.LastActiveMode).
			Msg("persisted mode no longer defined, starting in default mode")
		return nil
	}
	log.Info().Str("mode", snap.LastActiveMode).Msg("restoring persisted mode")
	return snap
}

// State exposes the live runtime state for read access.
func (m *Manager) State() *State { return m.state }

// Config returns the agent configuration the manager was built from.
func (m *Manager) Config() *SystemConfig { return m.cfg }

// CurrentDefinition returns the definition of the active mode.
func (m *Manager) CurrentDefinition() *Definition {
	d, _ := m.cfg.Mode(m.state.Current())
	return d
}

// Requests is the channel the evaluation loop drains for transition
// requests submitted from other goroutines.
func (m *Manager) Requests() <-chan *SwitchRequest { return m.requests }

// Submit queues a transition request for the evaluation loop and
// returns a channel delivering the outcome.
func (m *Manager) Submit(target, reason string) <-chan bool {
	req := &SwitchRequest{Target: target, Reason: reason, reply: make(chan bool, 1)}
	select {
	case m.requests <- req:
	default:
		// Loop is backed up; refuse rather than block the caller.
		req.Resolve(false)
	}
	return req.reply
}

// AddTransitionCallback registers an observer and returns its id.
func (m *Manager) AddTransitionCallback(cb TransitionCallback) int {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	id := m.nextCB
	m.nextCB++
	m.callbacks[id] = cb
	return id
}

// RemoveTransitionCallback drops a previously registered observer.
func (m *Manager) RemoveTransitionCallback(id int) {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	delete(m.callbacks, id)
}

func (m *Manager) notify(from, to, reason string) {
	m.callbackMu.Lock()
	cbs := make([]TransitionCallback, 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		cbs = append(cbs, cb)
	}
	m.callbackMu.Unlock()
	for _, cb := range cbs {
		invokeCallback(cb, from, to, reason)
	}
}

// invokeCallback shields the transition from a misbehaving observer. A
// panicking callback is logged; the remaining callbacks still run and
// the transition stays successful.
func invokeCallback(cb TransitionCallback, from, to, reason string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("from", from).
				Str("to", to).
				Any("panic", r).
				Msg("transition callback panicked")
		}
	}()
	cb(from, to, reason)
}

// AvailableTransitions lists the rules reachable from the current mode,
// highest priority first.
func (m *Manager) AvailableTransitions() []Rule {
	current := m.state.Current()
	var out []Rule
	for _, r := range m.cfg.Rules {
		if r.Matches(current) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// infoHistory is how many trailing history entries a status query
// carries.
const infoHistory = 5

// Info is a read-only summary of the machine for status queries. It
// marshals to the JSON payload carried in wire responses.
type Info struct {
	CurrentMode   string   `json:"current_mode"`
	DisplayName   string   `json:"display_name"`
	Description   string   `json:"description,omitempty"`
	ModeDuration  float64  `json:"mode_duration"`
	PreviousMode  string   `json:"previous_mode,omitempty"`
	Available     []string `json:"available_transitions"`
	AllModes      []string `json:"all_modes"`
	History       []string `json:"transition_history"`
	Timeout       float64  `json:"timeout_seconds,omitempty"`
	TimeRemaining *float64 `json:"time_remaining,omitempty"`
}

// Info summarizes the machine for the wire protocol and the CLI.
func (m *Manager) Info() Info {
	current := m.state.Current()
	elapsed := m.state.TimeInMode(m.now())
	info := Info{
		CurrentMode:  current,
		DisplayName:  current,
		ModeDuration: elapsed.Seconds(),
		PreviousMode: m.state.Previous(),
	}
	if d, err := m.cfg.Mode(current); err == nil {
		info.DisplayName = d.Title()
		info.Description = d.Description
		if d.Timeout > 0 {
			info.Timeout = d.Timeout
			remaining := d.Timeout - elapsed.Seconds()
			info.TimeRemaining = &remaining
		}
	}
	seen := map[string]bool{}
	for _, r := range m.AvailableTransitions() {
		if !seen[r.ToMode] {
			seen[r.ToMode] = true
			info.Available = append(info.Available, r.ToMode)
		}
	}
	for name := range m.cfg.Modes {
		info.AllModes = append(info.AllModes, name)
	}
	sort.Strings(info.AllModes)
	h := m.state.History()
	if len(h) > infoHistory {
		h = h[len(h)-infoHistory:]
	}
	info.History = h
	return info
}

// EvaluateTick runs one round of automatic rule evaluation against the
// tick's collected input text. Time-based rules are checked first, then
// input-triggered, then context-aware; at most one transition happens
// per tick. Returns true when the mode changed.
func (m *Manager) EvaluateTick(ctx context.Context, inputText string) bool {
	if m.evaluateTimeBased(ctx) {
		return true
	}
	if inputText != "" && m.evaluateInput(ctx, inputText) {
		return true
	}
	return m.evaluateContext(ctx)
}

// evaluateTimeBased handles the timeout path. When the active mode has
// a timeout_seconds and has been held past it, the mode's on_timeout
// hooks fire and every time-based rule away from it becomes eligible.
// A rule carrying its own timeout_seconds becomes eligible on that
// clock alone. Rules are taken in config order; the expiry itself is
// the trigger, so no priority sort applies here.
func (m *Manager) evaluateTimeBased(ctx context.Context) bool {
	current := m.state.Current()
	def, err := m.cfg.Mode(current)
	if err != nil {
		return false
	}
	now := m.now()
	elapsed := m.state.TimeInMode(now)

	modeExpired := def.Timeout > 0 && elapsed >= secondsToDuration(def.Timeout)
	if modeExpired {
		m.RunModeHooks(ctx, def, hook.OnTimeout, hook.Context{
			"timeout_seconds": def.Timeout,
			"actual_duration": elapsed.Seconds(),
			"timestamp":       now.Format(time.RFC3339),
		})
	}

	for _, r := range m.cfg.Rules {
		if r.Kind != TimeBased || !r.Matches(current) || r.ToMode == current {
			continue
		}
		if !modeExpired && (r.Timeout <= 0 || elapsed < secondsToDuration(r.Timeout)) {
			continue
		}
		if !m.offCooldown(r, now) {
			continue
		}
		if m.attempt(ctx, r, ReasonTimeout) {
			return true
		}
	}
	return false
}

func (m *Manager) evaluateInput(ctx context.Context, inputText string) bool {
	lowered := strings.ToLower(inputText)
	now := m.now()
	for _, r := range m.sortedRules(m.state.Current(), InputTriggered) {
		if !keywordMatch(lowered, r.TriggerKeywords) {
			continue
		}
		if !m.offCooldown(r, now) {
			continue
		}
		if m.attempt(ctx, r, ReasonInput) {
			return true
		}
	}
	return false
}

func (m *Manager) evaluateContext(ctx context.Context) bool {
	now := m.now()
	for _, r := range m.sortedRules(m.state.Current(), ContextAware) {
		if !m.contextSatisfied(r) {
			continue
		}
		if !m.offCooldown(r, now) {
			continue
		}
		if m.attempt(ctx, r, ReasonContext) {
			return true
		}
	}
	return false
}

func (m *Manager) sortedRules(from string, kind TransitionKind) []Rule {
	var out []Rule
	for _, r := range m.cfg.Rules {
		if r.Kind == kind && r.Matches(from) && r.ToMode != from {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func (m *Manager) contextSatisfied(r Rule) bool {
	if len(r.ContextConditions) == 0 {
		return false
	}
	for _, key := range r.ContextConditions {
		if _, ok := m.state.Context(key); !ok {
			return false
		}
	}
	return true
}

func (m *Manager) offCooldown(r Rule, now time.Time) bool {
	if r.Cooldown <= 0 {
		return true
	}
	last, ok := m.cooldowns[r.CooldownKey()]
	if !ok {
		return true
	}
	return now.Sub(last) >= secondsToDuration(r.Cooldown)
}

// attempt records the cooldown stamp and executes the transition. The
// stamp is taken before execution so a failing transition is not
// retried every tick.
func (m *Manager) attempt(ctx context.Context, r Rule, reason string) bool {
	m.cooldowns[r.CooldownKey()] = m.now()
	return m.executeTransition(ctx, r.ToMode, reason)
}

// RequestTransition asks for an explicit switch to target. A request to
// the current mode is a successful no-op with no hooks run. Manual
// switching may be disabled by config, which refuses only requests
// carrying the manual reason; programmatic reasons still pass.
func (m *Manager) RequestTransition(ctx context.Context, target, reason string) bool {
	if target == m.state.Current() {
		return true
	}
	if _, ok := m.cfg.Modes[target]; !ok {
		log.Warn().Str("mode", target).Msg("transition refused: unknown mode")
		return false
	}
	if !m.cfg.AllowManualSwitching && reason == ReasonManual {
		log.Warn().Str("mode", target).Msg("transition refused: manual switching disabled")
		return false
	}
	return m.executeTransition(ctx, target, reason)
}

// HandleRequest services one submitted request on the evaluation loop.
func (m *Manager) HandleRequest(ctx context.Context, req *SwitchRequest) {
	req.Resolve(m.RequestTransition(ctx, req.Target, req.Reason))
}

// executeTransition performs the full transition sequence: exit hooks
// on the old mode then the global ones, the state change, entry hooks
// on the new mode then the global ones, callbacks, and finally a
// snapshot save. Hook failures anywhere in the sequence are logged and
// never undo the transition. A panic is contained and reported as
// failure; state already mutated stays mutated.
func (m *Manager) executeTransition(ctx context.Context, to, reason string) (ok bool) {
	from := m.state.Current()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("from", from).
				Str("to", to).
				Any("panic", r).
				Msg("transition panicked")
			ok = false
		}
	}()

	log.Info().Str("from", from).Str("to", to).Str("reason", reason).Msg("mode transition")

	hctx := m.hookContext(from, to, reason)
	if d, err := m.cfg.Mode(from); err == nil {
		if !m.RunModeHooks(ctx, d, hook.OnExit, hctx) {
			log.Warn().Str("from", from).Msg("exit hooks reported failure")
		}
	}
	if !m.RunGlobalHooks(ctx, hook.OnExit, hctx) {
		log.Warn().Msg("global exit hooks reported failure")
	}

	target, err := m.cfg.Mode(to)
	if err != nil {
		return false
	}

	m.state.record(to, reason, m.now())

	if !m.RunModeHooks(ctx, target, hook.OnEntry, hctx) {
		// The mode is already active; entry hook failure is reported
		// but does not roll the machine back.
		log.Warn().Str("to", to).Msg("entry hooks reported failure")
	}
	if !m.RunGlobalHooks(ctx, hook.OnEntry, hctx) {
		log.Warn().Msg("global entry hooks reported failure")
	}

	m.notify(from, to, reason)

	if err := m.saveSnapshot(); err != nil {
		log.Warn().Err(err).Msg("mode snapshot save failed")
	}
	return true
}

// RunModeHooks executes one mode's hooks of the given type with the
// mode's identity injected into the handler context.
func (m *Manager) RunModeHooks(ctx context.Context, d *Definition, t hook.Type, hctx hook.Context) bool {
	merged := hook.Context{}
	for k, v := range hctx {
		merged[k] = v
	}
	merged["mode_name"] = d.Name
	merged["mode_display_name"] = d.Title()
	merged["mode_description"] = d.Description
	return m.engine.Execute(ctx, d.Hooks, t, merged)
}

// RunGlobalHooks executes the config-wide hooks of the given type,
// marked as global in the handler context.
func (m *Manager) RunGlobalHooks(ctx context.Context, t hook.Type, hctx hook.Context) bool {
	merged := hook.Context{}
	for k, v := range hctx {
		merged[k] = v
	}
	merged["system_name"] = m.cfg.Name
	merged["is_global_hook"] = true
	return m.engine.Execute(ctx, m.cfg.GlobalHooks, t, merged)
}

// saveSnapshot persists the state reached by a transition. Persistence
// only happens when mode memory is enabled; otherwise restarts always
// land in the default mode and nothing is written.
func (m *Manager) saveSnapshot() error {
	if !m.cfg.ModeMemoryEnabled {
		return nil
	}
	return m.store.Save(&Snapshot{
		LastActiveMode:    m.state.Current(),
		PreviousMode:      m.state.Previous(),
		Timestamp:         m.now(),
		TransitionHistory: m.state.History(),
	})
}

// hookContext builds the context map handed to lifecycle hooks.
func (m *Manager) hookContext(from, to, reason string) hook.Context {
	hctx := hook.Context{
		"from_mode": from,
		"to_mode":   to,
		"reason":    reason,
		"timestamp": m.now().Format(time.RFC3339),
	}
	for k, v := range m.state.ContextSnapshot() {
		hctx[k] = v
	}
	return hctx
}

func keywordMatch(loweredInput string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(loweredInput, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
