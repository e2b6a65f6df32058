// Package tts provides the text-to-speech collaborator hooks and the speak
// action forward text to. The engine behind the endpoint is external; this
// client only speaks its HTTP contract.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures the TTS client.
type Config struct {
	// BaseURL is the speech service endpoint.
	BaseURL string
	// APIKey authenticates against the speech service.
	APIKey string
	// Voice selects the voice to synthesize with.
	Voice string
	// Timeout bounds each synthesis request.
	Timeout time.Duration
}

// DefaultConfig returns production defaults for a local speech service.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8880",
		Voice:   "default",
		Timeout: 10 * time.Second,
	}
}

// Client speaks text through the configured speech service.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a TTS client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Announce queues text for synthesis. It satisfies hook.Announcer.
func (c *Client) Announce(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"text":  text,
		"voice": c.cfg.Voice,
	})
	if err != nil {
		return fmt.Errorf("encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/speak", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tts error (status %d): %s", resp.StatusCode, string(body))
	}

	log.Debug().Str("text", text).Msg("queued tts announcement")
	return nil
}
