package mode

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/axon/internal/bus"
)

// switchWait bounds how long a wire request waits for the evaluation
// loop to service a submitted switch.
const switchWait = 10 * time.Second

// Controller answers mode requests arriving on the bus. Queries are
// answered inline from guarded state; switch requests are handed to
// the evaluation loop so all mutation stays on one goroutine.
type Controller struct {
	mgr *Manager
	bus *bus.Bus
}

// NewController wires a controller to the manager and bus.
func NewController(mgr *Manager, b *bus.Bus) *Controller {
	return &Controller{mgr: mgr, bus: b}
}

// Run subscribes to the request topic and serves until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	id := c.bus.Subscribe(bus.TopicModeRequest, func(msg bus.Message) {
		c.handle(ctx, msg)
	})
	defer c.bus.Unsubscribe(id)
	<-ctx.Done()
	return nil
}

func (c *Controller) handle(ctx context.Context, msg bus.Message) {
	var req bus.ModeRequest
	if err := msg.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("malformed mode request")
		c.respond(bus.ModeResponse{
			Code:        bus.ModeResponseFailure,
			CurrentMode: c.mgr.State().Current(),
			Message:     "malformed request",
		})
		return
	}
	switch req.Code {
	case bus.ModeRequestQuery:
		info := c.mgr.Info()
		payload, err := json.Marshal(info)
		if err != nil {
			log.Error().Err(err).Msg("mode info encode failed")
			c.respond(bus.ModeResponse{
				Code:        bus.ModeResponseFailure,
				CurrentMode: info.CurrentMode,
				Message:     "mode info unavailable",
				RequestID:   req.RequestID,
			})
			return
		}
		c.respond(bus.ModeResponse{
			Code:        bus.ModeResponseSuccess,
			CurrentMode: info.CurrentMode,
			Message:     string(payload),
			RequestID:   req.RequestID,
		})
	case bus.ModeRequestSwitch:
		// The switch waits on the evaluation loop; it must not hold up
		// this subscriber callback or queued requests would stall
		// behind it.
		go c.handleSwitch(ctx, req)
	default:
		c.respond(bus.ModeResponse{
			Code:        bus.ModeResponseFailure,
			CurrentMode: c.mgr.State().Current(),
			Message:     "unknown request code",
			RequestID:   req.RequestID,
		})
	}
}

func (c *Controller) handleSwitch(ctx context.Context, req bus.ModeRequest) {
	done := c.mgr.Submit(req.Mode, ReasonManual)
	ok := false
	select {
	case ok = <-done:
	case <-time.After(switchWait):
		log.Warn().Str("mode", req.Mode).Msg("mode switch request timed out")
	case <-ctx.Done():
	}
	resp := bus.ModeResponse{
		CurrentMode: c.mgr.State().Current(),
		RequestID:   req.RequestID,
	}
	if ok {
		resp.Code = bus.ModeResponseSuccess
		resp.Message = "switched to " + req.Mode
	} else {
		resp.Code = bus.ModeResponseFailure
		resp.Message = "switch to " + req.Mode + " refused"
	}
	c.respond(resp)
}

func (c *Controller) respond(resp bus.ModeResponse) {
	msg, err := bus.NewMessage(bus.TopicModeResponse, resp)
	if err != nil {
		log.Error().Err(err).Msg("mode response encode failed")
		return
	}
	c.bus.Publish(msg)
}
