// Package llm provides the reasoning backends modes think with. A provider
// receives the fused perception prompt and returns structured action
// commands for the orchestrators. Providers are instantiated fresh from a
// mode's manifest on every activation of that mode.
package llm

import (
	"context"
	"time"
)

// Command is one action the reasoning backend decided to take: an action
// name plus its argument string, e.g. {"speak", "hello there"}.
type Command struct {
	Name     string `json:"name"`
	Argument string `json:"argument"`
}

// Reply is a provider's response to one prompt.
type Reply struct {
	Content  string        `json:"content"`
	Commands []Command     `json:"commands"`
	Model    string        `json:"model,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Provider is a reasoning backend. Ask blocks until the backend answers or
// ctx is done.
type Provider interface {
	// Ask sends the fused prompt and returns the structured reply.
	Ask(ctx context.Context, prompt string) (*Reply, error)

	// Name returns the provider identifier.
	Name() string
}

// ActionSchema declares one callable action to the backend. Schemas are
// built explicitly alongside each action rather than reflected from code.
type ActionSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Argument describes the single free-text argument the action takes.
	Argument string `json:"argument"`
}

// Config configures a provider instance, derived from a mode's LLM manifest
// with the global credentials merged in.
type Config struct {
	// Provider is the registry name of the backend, e.g. "openai".
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	AgentName    string
	SystemPrompt string
	Timeout      time.Duration
	Actions      []ActionSchema
}
