package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/normanking/axon/internal/llm"
	"github.com/normanking/axon/internal/tts"
)

// speakConnector forwards text to the TTS collaborator.
type speakConnector struct {
	tts *tts.Client
}

func (c *speakConnector) Connect(ctx context.Context, input string) error {
	if input == "" {
		return nil
	}
	return c.tts.Announce(ctx, input)
}

// NewSpeak creates the speak action, the mouth of the agent.
func NewSpeak(cfg Config) (*Action, error) {
	client := cfg.TTS
	if client == nil {
		client = tts.New(tts.Config{
			BaseURL: cfg.String("base_url", ""),
			APIKey:  cfg.APIKey,
			Voice:   cfg.String("voice", "default"),
			Timeout: 10 * time.Second,
		})
	}
	return &Action{
		Name: "speak",
		Schema: llm.ActionSchema{
			Name:        "speak",
			Description: "Say something out loud to the people nearby.",
			Argument:    "The exact sentence to speak.",
		},
		Connector: &speakConnector{tts: client},
	}, nil
}

// emergencyConnector announces an alert with maximum salience.
type emergencyConnector struct {
	tts    *tts.Client
	prefix string
}

func (c *emergencyConnector) Connect(ctx context.Context, input string) error {
	if input == "" {
		input = "emergency detected"
	}
	return c.tts.Announce(ctx, fmt.Sprintf("%s %s", c.prefix, input))
}

// NewEmergencyAlert creates the emergency alert action used by safety modes.
func NewEmergencyAlert(cfg Config) (*Action, error) {
	client := cfg.TTS
	if client == nil {
		client = tts.New(tts.Config{
			BaseURL: cfg.String("base_url", ""),
			APIKey:  cfg.APIKey,
			Voice:   cfg.String("voice", "default"),
		})
	}
	return &Action{
		Name: "emergency_alert",
		Schema: llm.ActionSchema{
			Name:        "emergency_alert",
			Description: "Announce an urgent safety alert immediately.",
			Argument:    "Short description of the emergency.",
		},
		Connector: &emergencyConnector{tts: client, prefix: cfg.String("prefix", "Attention.")},
	}, nil
}

func init() {
	Register("speak", NewSpeak)
	Register("emergency_alert", NewEmergencyAlert)
}
