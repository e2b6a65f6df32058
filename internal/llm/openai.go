package llm

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

// maxErrorBodySize limits how much of an error response body is read.
const maxErrorBodySize = 1 * 1024 * 1024

// OpenAI is a provider for any OpenAI-compatible chat completion endpoint.
// Actions are exposed to the model as tools; tool calls come back as
// Commands.
type OpenAI struct {
	cfg    Config
	client *http.Client
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string { return "openai" }

// Ask sends the prompt and parses tool calls into action commands.
func (p *OpenAI) Ask(ctx context.Context, prompt string) (*Reply, error) {
	start := time.Now()

	req := chatRequest{Model: p.cfg.Model}
	if p.cfg.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: p.cfg.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	for _, a := range p.cfg.Actions {
		req.Tools = append(req.Tools, tool{
			Type: "function",
			Function: toolFunction{
				Name:        a.Name,
				Description: a.Description,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"argument": map[string]any{
							"type":        "string",
							"description": a.Argument,
						},
					},
					"required": []string{"argument"},
				},
			},
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("llm error (status %d): %s", resp.StatusCode, string(errBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := chatResp.Choices[0]
	reply := &Reply{
		Content:  choice.Message.Content,
		Model:    chatResp.Model,
		Duration: time.Since(start),
	}

	for _, tc := range choice.Message.ToolCalls {
		var args struct {
			Argument string `json:"argument"`
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("unparseable tool call arguments")
			continue
		}
		reply.Commands = append(reply.Commands, Command{
			Name:     tc.Function.Name,
			Argument: args.Argument,
		})
	}

	return reply, nil
}

// OpenAI wire types.

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []tool        `json:"tools,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
