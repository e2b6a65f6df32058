package inputs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSTextSensor streams text frames from a websocket endpoint, typically an
// ASR gateway. It reconnects with backoff when the connection drops and
// stops cleanly when its context is cancelled.
type WSTextSensor struct {
	buffer
	name          string
	endpoint      string
	reconnectWait time.Duration
	maxReconnects int
	wake          func()
}

// wsTextFrame is the JSON shape the endpoint sends per utterance.
type wsTextFrame struct {
	Text   string `json:"text"`
	Urgent bool   `json:"urgent,omitempty"`
}

// NewWSTextSensor creates a websocket text sensor from its manifest config.
func NewWSTextSensor(cfg Config) (Sensor, error) {
	endpoint := cfg.String("endpoint", "")
	if endpoint == "" {
		return nil, fmt.Errorf("ws_text input requires an endpoint")
	}
	name := cfg.Name
	if name == "" {
		name = "ws_text"
	}
	return &WSTextSensor{
		name:          name,
		endpoint:      endpoint,
		reconnectWait: time.Second,
		maxReconnects: 5,
		wake:          cfg.Wake,
	}, nil
}

// Name identifies the sensor.
func (s *WSTextSensor) Name() string { return s.name }

// Listen connects and pumps frames until ctx is cancelled. Connection
// failures are retried up to the reconnect limit with growing waits.
func (s *WSTextSensor) Listen(ctx context.Context) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint, nil)
		if err != nil {
			attempts++
			if s.maxReconnects > 0 && attempts > s.maxReconnects {
				return fmt.Errorf("connect %s: %w", s.endpoint, err)
			}
			log.Warn().Err(err).Str("endpoint", s.endpoint).Int("attempt", attempts).
				Msg("ws text input connect failed, retrying")
			select {
			case <-time.After(s.reconnectWait * time.Duration(attempts)):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		attempts = 0
		log.Info().Str("endpoint", s.endpoint).Msg("ws text input connected")

		if err := s.pump(ctx, conn); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("ws text input stream ended, reconnecting")
		}
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// pump reads frames until the connection breaks or ctx is cancelled.
func (s *WSTextSensor) pump(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when the mode switches away.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame wsTextFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug().Err(err).Msg("skipping unparseable ws text frame")
			continue
		}
		if frame.Text == "" {
			continue
		}
		s.push(Event{Text: frame.Text, Urgent: frame.Urgent, At: time.Now()})
		if frame.Urgent && s.wake != nil {
			s.wake()
		}
	}
}

func init() {
	Register("ws_text", NewWSTextSensor)
}
