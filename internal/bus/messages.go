package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic names a message stream on the bus. Topic strings mirror the key
// expressions the robot's peripherals publish and subscribe on.
type Topic string

const (
	// TopicModeRequest carries mode switch and mode query requests.
	TopicModeRequest Topic = "axon/mode/request"

	// TopicModeResponse carries replies to mode requests.
	TopicModeResponse Topic = "axon/mode/response"

	// TopicSpeech carries recognized speech text from ASR inputs.
	TopicSpeech Topic = "axon/speech"

	// TopicStatus carries periodic liveness beacons from backgrounds.
	TopicStatus Topic = "axon/status"
)

// Message is one wire-level datagram: a topic plus a serialized payload.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Topic     Topic     `json:"topic"`
	Payload   []byte    `json:"payload"`
}

// NewMessage builds a message with a fresh ID, encoding payload as JSON.
func NewMessage(topic Topic, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Topic:     topic,
		Payload:   data,
	}, nil
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Topic, err)
	}
	return nil
}

// Request codes for the mode control protocol.
const (
	// ModeRequestSwitch asks the runtime to switch to the named mode.
	ModeRequestSwitch = 0
	// ModeRequestQuery asks for information about the current mode.
	ModeRequestQuery = 1
)

// Response codes for the mode control protocol.
const (
	ModeResponseSuccess = 0
	ModeResponseFailure = 1
)

// ModeRequest is a wire request against the mode control surface.
// Code 0 switches to Mode; code 1 queries current mode info.
type ModeRequest struct {
	Code      int    `json:"code"`
	Mode      string `json:"mode,omitempty"`
	RequestID string `json:"request_id"`
}

// ModeResponse answers a ModeRequest. Every request is answered exactly once.
type ModeResponse struct {
	Code        int    `json:"code"`
	CurrentMode string `json:"current_mode"`
	Message     string `json:"message"`
	RequestID   string `json:"request_id"`
}

// Speech is a recognized utterance published by an ASR input plugin.
type Speech struct {
	Text   string `json:"text"`
	Urgent bool   `json:"urgent,omitempty"`
	Source string `json:"source,omitempty"`
}

// Status is a liveness beacon published by background plugins.
type Status struct {
	Component string `json:"component"`
	Mode      string `json:"mode"`
	Detail    string `json:"detail,omitempty"`
}
