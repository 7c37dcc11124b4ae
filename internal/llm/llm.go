/*
PURPOSE:
  Defines the model-call capability shared by candidates and judges.
  A Client accepts role-tagged messages and returns whole or streamed text
  plus token usage.

REQUIREMENTS:
  User-specified:
  - Judges submit a list of role-tagged messages and receive streamed text.
  - Usage counts (input/output tokens) must be reported when the provider has them.

  Implementation-discovered:
  - Streaming is selected per request by setting OnChunk.
  - Provider selection lives outside the core (see factory.go).

ARCHITECTURE INTEGRATION:
  - Used by: internal/metrics (Instrument), internal/evaluate, internal/pipelines
  - Implemented by: ollama.go, openai.go, ClientFunc

ERROR HANDLING:
  - Providers return wrapped errors; callers decide whether a failure is fatal.

IMPLEMENTATION RULES:
  - Keep this file free of provider-specific code.

USAGE:
  resp, err := client.Chat(ctx, llm.Request{Model: "llama3.2", Messages: msgs})

RELATED FILES:
  - internal/llm/ollama.go
  - internal/metrics/instrument.go
*/

package llm

import (
	"context"
	"strings"
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// System builds a system message.
func System(text string) Message { return Message{Role: RoleSystem, Text: text} }

// User builds a user message.
func User(text string) Message { return Message{Role: RoleUser, Text: text} }

// Assistant builds an assistant message.
func Assistant(text string) Message { return Message{Role: RoleAssistant, Text: text} }

// Request is a single chat call.
type Request struct {
	// Model overrides the client's default model when set.
	Model       string
	Messages    []Message
	Temperature *float64
	// Options are passed through to the provider untouched (e.g. num_ctx for Ollama).
	Options map[string]interface{}
	// OnChunk, when set, makes the call streaming. It receives each text delta.
	OnChunk func(chunk string)
}

// Streaming reports whether the request asks for a streamed response.
func (r Request) Streaming() bool { return r.OnChunk != nil }

// Usage holds token counts reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the final outcome of a chat call. For streaming calls Text is the
// concatenation of every chunk.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Client is the only capability the harness needs from a model provider.
type Client interface {
	Chat(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

// Chat implements Client.
func (f ClientFunc) Chat(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Factory returns a client bound to the named model.
type Factory func(model string) (Client, error)

// Collect runs a streaming call and returns the accumulated text.
func Collect(ctx context.Context, c Client, req Request) (Response, error) {
	var b strings.Builder
	prev := req.OnChunk
	req.OnChunk = func(chunk string) {
		b.WriteString(chunk)
		if prev != nil {
			prev(chunk)
		}
	}
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Text == "" {
		resp.Text = b.String()
	}
	return resp, nil
}
