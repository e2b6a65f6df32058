package runtime

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/axon/internal/actions"
	"github.com/normanking/axon/internal/bus"
	"github.com/normanking/axon/internal/hook"
	"github.com/normanking/axon/internal/inputs"
	"github.com/normanking/axon/internal/llm"
	"github.com/normanking/axon/internal/memory"
	"github.com/normanking/axon/internal/mode"
)

// tracker records component lifecycle events across graph swaps.
type tracker struct {
	mu     sync.Mutex
	events []string
}

func (tr *tracker) add(ev string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, ev)
}

func (tr *tracker) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.events))
	copy(out, tr.events)
	return out
}

// activeTracker is picked up by the test plugins registered below.
var (
	activeTracker *tracker

	probeMu     sync.Mutex
	probeInputs []string
)

func probeCalls() []string {
	probeMu.Lock()
	defer probeMu.Unlock()
	out := make([]string, len(probeInputs))
	copy(out, probeInputs)
	return out
}

// trackingSensor reports when its listen loop starts and stops.
type trackingSensor struct {
	mode string
	tr   *tracker
}

func (s *trackingSensor) Name() string { return "tracking" }

func (s *trackingSensor) Listen(ctx context.Context) error {
	s.tr.add("start:" + s.mode)
	<-ctx.Done()
	s.tr.add("stop:" + s.mode)
	return ctx.Err()
}

func (s *trackingSensor) Drain() []inputs.Event { return nil }

// scriptProvider returns a fixed command for every prompt.
type scriptProvider struct{}

func (scriptProvider) Name() string { return "script" }

func (scriptProvider) Ask(ctx context.Context, prompt string) (*llm.Reply, error) {
	return &llm.Reply{
		Content:  "probing",
		Commands: []llm.Command{{Name: "probe", Argument: prompt}},
	}, nil
}

type probeConnector struct{}

func (probeConnector) Connect(ctx context.Context, input string) error {
	probeMu.Lock()
	defer probeMu.Unlock()
	probeInputs = append(probeInputs, input)
	return nil
}

func init() {
	inputs.Register("tracking", func(cfg inputs.Config) (inputs.Sensor, error) {
		return &trackingSensor{mode: cfg.Mode, tr: activeTracker}, nil
	})
	llm.Register("script", func(cfg llm.Config) (llm.Provider, error) {
		return scriptProvider{}, nil
	})
	actions.Register("probe", func(cfg actions.Config) (*actions.Action, error) {
		return &actions.Action{
			Name:      "probe",
			Schema:    llm.ActionSchema{Name: "probe", Description: "test probe"},
			Connector: probeConnector{},
		}, nil
	})
}

func testRuntimeConfig(t *testing.T) *mode.SystemConfig {
	t.Helper()
	return &mode.SystemConfig{
		Name:                 "rt-test",
		ConfigName:           "rt-test",
		DefaultMode:          "alpha",
		AllowManualSwitching: true,
		StateDir:             t.TempDir(),
		GlobalLLM:            &llm.Config{Provider: "script"},
		Modes: map[string]*mode.Definition{
			"alpha": {
				Name:   "alpha",
				Hertz:  20,
				Inputs: []mode.Manifest{{Type: "tracking"}, {Type: "speech"}},
				Actions: []mode.Manifest{
					{Type: "probe"},
				},
			},
			"beta": {
				Name:   "beta",
				Hertz:  20,
				Inputs: []mode.Manifest{{Type: "tracking"}},
			},
		},
	}
}

func newTestRuntime(t *testing.T, cfg *mode.SystemConfig) (*Runtime, *mode.Manager, *bus.Bus) {
	t.Helper()
	b := bus.New()
	t.Cleanup(func() { b.Close() })

	engine := hook.NewEngine(nil, nil)
	mgr, err := mode.NewManager(cfg, engine)
	require.NoError(t, err)

	return New(cfg, mgr, Deps{Bus: b}), mgr, b
}

func TestSwapGraphStopsOldTasksBeforeStartingNew(t *testing.T) {
	tr := &tracker{}
	activeTracker = tr

	cfg := testRuntimeConfig(t)
	r, _, _ := newTestRuntime(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.activate(ctx, cfg.Modes["alpha"]))
	r.startTasks(ctx)
	r.swapGraph(ctx, "beta")
	require.NoError(t, r.fatal)
	r.tasks.stop()

	events := tr.snapshot()
	require.Equal(t, []string{"start:alpha", "stop:alpha", "start:beta", "stop:beta"}, events)
}

func TestSwapGraphUnknownModeIsFatal(t *testing.T) {
	activeTracker = &tracker{}
	cfg := testRuntimeConfig(t)
	r, _, _ := newTestRuntime(t, cfg)

	ctx := context.Background()
	require.NoError(t, r.activate(ctx, cfg.Modes["alpha"]))
	r.startTasks(ctx)
	defer r.tasks.stop()

	r.swapGraph(ctx, "gamma")
	assert.Error(t, r.fatal)
}

func TestRunFiresEntryHooksBeforeTasksStart(t *testing.T) {
	tr := &tracker{}
	activeTracker = tr

	hook.RegisterFunc("rttest", "entry", func(ctx context.Context, hctx hook.Context) error {
		tr.add("hook:entry")
		return nil
	})
	defer hook.UnregisterFunc("rttest", "entry")

	cfg := testRuntimeConfig(t)
	cfg.Modes["alpha"].Hooks = []hook.Hook{{
		Type: hook.OnEntry, Kind: hook.KindFunction,
		HandlerConfig: map[string]any{"module_name": "rttest", "function": "entry"},
		Timeout:       hook.DefaultTimeout, OnFailure: hook.FailureIgnore,
	}}
	r, _, _ := newTestRuntime(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(tr.snapshot()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("runtime did not stop")
	}

	events := tr.snapshot()
	assert.Equal(t, []string{"hook:entry", "start:alpha"}, events[:2])
}

func TestBuildGraphHonorsRememberLocationsFlag(t *testing.T) {
	activeTracker = &tracker{}
	cfg := testRuntimeConfig(t)
	def := cfg.Modes["alpha"]
	def.Actions = append(def.Actions, mode.Manifest{Type: actions.TypeRememberLocation})

	st, err := memory.Open(filepath.Join(t.TempDir(), "mem.db"))
	require.NoError(t, err)
	defer st.Close()
	b := bus.New()
	t.Cleanup(func() { b.Close() })
	deps := Deps{Bus: b, Memory: st}

	g, err := buildGraph(cfg, def, deps)
	require.NoError(t, err)
	assert.NotContains(t, g.Actions, actions.TypeRememberLocation)

	def.RememberLocations = true
	g, err = buildGraph(cfg, def, deps)
	require.NoError(t, err)
	assert.Contains(t, g.Actions, actions.TypeRememberLocation)
}

func TestRunReasonsOverSpeechAndDispatches(t *testing.T) {
	activeTracker = &tracker{}
	probeMu.Lock()
	probeInputs = nil
	probeMu.Unlock()

	cfg := testRuntimeConfig(t)
	r, _, b := newTestRuntime(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Let the graph come up, then feed it speech.
	require.Eventually(t, func() bool {
		return b.SubscriberCount(bus.TopicSpeech) > 0
	}, 2*time.Second, 10*time.Millisecond)

	msg, err := bus.NewMessage(bus.TopicSpeech, bus.Speech{Text: "what do you see", Source: "test"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(msg))

	require.Eventually(t, func() bool {
		return len(probeCalls()) > 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, probeCalls()[0], "what do you see")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestRunSwitchesModeOnWireRequest(t *testing.T) {
	tr := &tracker{}
	activeTracker = tr

	cfg := testRuntimeConfig(t)
	r, mgr, b := newTestRuntime(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return b.SubscriberCount(bus.TopicModeRequest) > 0
	}, 2*time.Second, 10*time.Millisecond)

	msg, err := bus.NewMessage(bus.TopicModeRequest, bus.ModeRequest{
		Code: bus.ModeRequestSwitch, Mode: "beta", RequestID: "w1",
	})
	require.NoError(t, err)
	require.NoError(t, b.Publish(msg))

	require.Eventually(t, func() bool {
		return mgr.State().Current() == "beta"
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("runtime did not stop")
	}

	events := tr.snapshot()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, []string{"start:alpha", "stop:alpha", "start:beta"}, events[:3])
}

func TestTickerSkip(t *testing.T) {
	tk := newTicker()
	tk.SkipNext()

	start := time.Now()
	tk.Wait(context.Background(), time.Second)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestFuserEmptyMeansNoPrompt(t *testing.T) {
	var f fuser
	assert.Empty(t, f.Fuse(nil, nil))
}

func TestFuserIncludesEventsAndResults(t *testing.T) {
	var f fuser
	prompt := f.Fuse(
		[]sensorEvents{{sensor: "speech", events: []inputs.Event{{Text: "hello robot", At: time.Now()}}}},
		[]string{"speak: done"},
	)
	assert.Contains(t, prompt, "hello robot")
	assert.Contains(t, prompt, "speak: done")
	assert.Contains(t, prompt, "speech")
}
