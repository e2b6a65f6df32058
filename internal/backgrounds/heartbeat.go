package backgrounds

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/axon/internal/bus"
)

// heartbeat publishes a periodic status message so external tooling can
// tell which mode the agent is in and that the loop is alive.
type heartbeat struct {
	mode     string
	bus      *bus.Bus
	interval time.Duration
}

func (h *heartbeat) Name() string { return "heartbeat" }

func (h *heartbeat) Run(ctx context.Context) error {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if h.bus == nil {
				continue
			}
			msg, err := bus.NewMessage(bus.TopicStatus, bus.Status{
				Component: "heartbeat",
				Mode:      h.mode,
				Detail:    "alive",
			})
			if err != nil {
				log.Warn().Err(err).Msg("heartbeat encode failed")
				continue
			}
			h.bus.Publish(msg)
		}
	}
}

func init() {
	Register("heartbeat", func(cfg Config) (Background, error) {
		return &heartbeat{
			mode:     cfg.Mode,
			bus:      cfg.Bus,
			interval: cfg.Duration("interval", 10*time.Second),
		}, nil
	})
}
