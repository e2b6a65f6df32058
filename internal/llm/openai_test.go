package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIAskParsesToolCalls(t *testing.T) {
	var gotReq chatRequest
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{
				"message": {
					"content": "on my way",
					"tool_calls": [
						{"function": {"name": "speak", "arguments": "{\"argument\": \"hello\"}"}},
						{"function": {"name": "speak", "arguments": "not json"}}
					]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	})

	p := NewOpenAI(Config{
		BaseURL:      srv.URL,
		APIKey:       "sk-test",
		SystemPrompt: "You are a robot.",
		Actions: []ActionSchema{
			{Name: "speak", Description: "Say something", Argument: "The text to say"},
		},
	})

	reply, err := p.Ask(context.Background(), "greet the visitor")
	require.NoError(t, err)

	assert.Equal(t, "on my way", reply.Content)
	require.Len(t, reply.Commands, 1, "unparseable tool call is skipped")
	assert.Equal(t, Command{Name: "speak", Argument: "hello"}, reply.Commands[0])
	assert.Greater(t, reply.Duration.Nanoseconds(), int64(0))

	// The request carried the persona and the declared tools.
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "greet the visitor", gotReq.Messages[1].Content)
	require.Len(t, gotReq.Tools, 1)
	assert.Equal(t, "speak", gotReq.Tools[0].Function.Name)
}

func TestOpenAIAskErrorStatus(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	})

	p := NewOpenAI(Config{BaseURL: srv.URL})
	_, err := p.Ask(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIAskEmptyChoices(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	p := NewOpenAI(Config{BaseURL: srv.URL})
	_, err := p.Ask(context.Background(), "hello")
	assert.Error(t, err)
}

func TestRegistryLookup(t *testing.T) {
	p, err := New("openai", Config{})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = New("nonexistent", Config{})
	assert.Error(t, err)
}
