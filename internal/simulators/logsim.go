package simulators

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/normanking/axon/internal/llm"
)

// logSimulator prints each dispatched command batch. Useful when running
// an agent config without hardware attached.
type logSimulator struct {
	mode string
}

func (s *logSimulator) Name() string { return "log" }

func (s *logSimulator) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *logSimulator) Simulate(cmds []llm.Command) {
	for _, c := range cmds {
		log.Info().
			Str("simulator", "log").
			Str("mode", s.mode).
			Str("action", c.Name).
			Str("argument", c.Argument).
			Msg("simulated command")
	}
}

func init() {
	Register("log", func(cfg Config) (Simulator, error) {
		return &logSimulator{mode: cfg.Mode}, nil
	})
}
