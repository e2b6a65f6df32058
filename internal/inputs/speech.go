package inputs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/axon/internal/bus"
)

// SpeechSensor receives recognized speech from the bus. Whatever ASR
// pipeline feeds the speech topic, this sensor is how a mode hears it.
type SpeechSensor struct {
	buffer
	name string
	bus  *bus.Bus
	wake func()
}

// NewSpeechSensor creates a speech sensor bound to the bus.
func NewSpeechSensor(cfg Config) (Sensor, error) {
	if cfg.Bus == nil {
		return nil, fmt.Errorf("speech input requires a bus")
	}
	name := cfg.Name
	if name == "" {
		name = "speech"
	}
	return &SpeechSensor{name: name, bus: cfg.Bus, wake: cfg.Wake}, nil
}

// Name identifies the sensor.
func (s *SpeechSensor) Name() string { return s.name }

// Listen subscribes to the speech topic until ctx is cancelled.
func (s *SpeechSensor) Listen(ctx context.Context) error {
	id := s.bus.Subscribe(bus.TopicSpeech, func(msg bus.Message) {
		var sp bus.Speech
		if err := msg.Decode(&sp); err != nil {
			log.Warn().Err(err).Msg("undecodable speech message")
			return
		}
		if sp.Text == "" {
			return
		}
		s.push(Event{Text: sp.Text, Urgent: sp.Urgent, At: time.Now()})
		if sp.Urgent && s.wake != nil {
			s.wake()
		}
	})
	if id == "" {
		return fmt.Errorf("subscribe to speech topic: bus closed")
	}

	<-ctx.Done()
	if err := s.bus.Unsubscribe(id); err != nil {
		log.Debug().Err(err).Msg("speech unsubscribe after shutdown")
	}
	return ctx.Err()
}

func init() {
	Register("speech", NewSpeechSensor)
}
