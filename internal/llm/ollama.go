/*
PURPOSE:
  Client for the Ollama chat API.
  Handles model discovery, streaming and non-streaming chat calls.

REQUIREMENTS:
  User-specified:
  - Detect models.
  - Stream inference (with timeout and garbage resilience).
  - Report prompt/eval token counts as usage.

  Implementation-discovered:
  - Needs http.Client with timeouts. Model loading happens before headers arrive,
    so ResponseHeaderTimeout covers the load phase.
  - Resilience against "garbage" JSON (invalid chunks).
  - A streamed call cannot be retried once chunks were handed to the caller.

ARCHITECTURE INTEGRATION:
  - Called by: internal/evaluate, internal/pipelines (through metrics.Instrument)
  - Built by: factory.go

ERROR HANDLING:
  - Retries connection failures up to MaxRetries with RetryDelay between attempts.
  - Server-side errors (non-200, "error" field) are returned wrapped, not retried.

IMPLEMENTATION RULES:
  - Use net/http.
  - Enforce timeouts.
  - Parse streaming JSON line-by-line.

USAGE:
  c := llm.NewOllama(llm.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3.2"})
  models, err := c.Models(ctx)
  resp, err := c.Chat(ctx, llm.Request{Messages: msgs})

SELF-HEALING INSTRUCTIONS:
  - If Ollama API changes, update endpoints (/api/tags, /api/chat).

RELATED FILES:
  - internal/llm/llm.go
  - internal/llm/factory.go
*/

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures an Ollama client.
type OllamaConfig struct {
	BaseURL       string
	Model         string
	MaxRetries    int
	RetryDelay    time.Duration
	LoadTimeout   time.Duration
	StreamTimeout time.Duration
	KeepAlive     string
	Logger        *slog.Logger
}

// Ollama talks to a single Ollama host.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
	logger *slog.Logger
}

// NewOllama creates a new Ollama client.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// ResponseHeaderTimeout covers the time until we receive the first response byte.
	// This is where model loading happens.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.LoadTimeout

	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Transport: transport},
		logger: logger,
	}
}

// Models returns the models available on the host.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChunk struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error"`
}

// errRetryable marks failures that happened before any output reached the caller.
type errRetryable struct{ err error }

func (e errRetryable) Error() string { return e.err.Error() }
func (e errRetryable) Unwrap() error { return e.err }

// Chat implements Client.
func (o *Ollama) Chat(ctx context.Context, req Request) (Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = o.cfg.Model
	}
	if modelName == "" {
		return Response{}, errors.New("ollama: no model specified")
	}

	msgs := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMessage{Role: string(m.Role), Content: m.Text})
	}
	options := map[string]interface{}{}
	for k, v := range req.Options {
		options[k] = v
	}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	payload := map[string]interface{}{
		"model":    modelName,
		"messages": msgs,
		"stream":   req.Streaming(),
	}
	if len(options) > 0 {
		payload["options"] = options
	}
	if o.cfg.KeepAlive != "" {
		payload["keep_alive"] = o.cfg.KeepAlive
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("ollama: encode request: %w", err)
	}

	// Retry loop
	var lastErr error
	for i := 0; i < o.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(o.cfg.RetryDelay):
			}
			o.logger.Info("Retrying chat...", "model", modelName, "attempt", i+1)
		}

		resp, err := o.chatOnce(ctx, modelName, reqBody, req.OnChunk)
		if err == nil {
			return resp, nil
		}
		var retry errRetryable
		if !errors.As(err, &retry) || ctx.Err() != nil {
			return Response{}, err
		}
		lastErr = err
	}
	return Response{}, lastErr
}

func (o *Ollama) chatOnce(ctx context.Context, modelName string, body []byte, onChunk func(string)) (Response, error) {
	if o.cfg.LoadTimeout > 0 || o.cfg.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.LoadTimeout+o.cfg.StreamTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		// Classify specific network errors
		if strings.Contains(err.Error(), "awaiting headers") {
			return Response{}, errRetryable{fmt.Errorf("ollama header timeout (model loading?): %w", err)}
		}
		return Response{}, errRetryable{fmt.Errorf("network/connection error: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Response{}, fmt.Errorf("ollama server error (%s): %s", resp.Status, strings.TrimSpace(string(b)))
	}

	if onChunk == nil {
		var data ollamaChunk
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, errRetryable{fmt.Errorf("failed to read response body: %w", err)}
		}
		if err := json.Unmarshal(b, &data); err != nil {
			return Response{}, fmt.Errorf("ollama returned invalid JSON: %w (body: %s)", err, string(b))
		}
		if data.Error != "" {
			return Response{}, fmt.Errorf("ollama API error: %s", data.Error)
		}
		return Response{
			Text:  data.Message.Content,
			Model: firstNonEmpty(data.Model, modelName),
			Usage: Usage{InputTokens: data.PromptEvalCount, OutputTokens: data.EvalCount},
		}, nil
	}

	return o.processStream(resp.Body, modelName, onChunk)
}

func (o *Ollama) processStream(body io.Reader, modelName string, onChunk func(string)) (Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var text strings.Builder
	out := Response{Model: modelName}
	gotDone := false
	emitted := false

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var chunk ollamaChunk
		// Garbage resilience: Ignore JSON errors
		if err := json.Unmarshal(line, &chunk); err != nil {
			o.logger.Warn("Skipping invalid JSON chunk", "chunk", string(line))
			continue
		}
		if chunk.Error != "" {
			return Response{}, fmt.Errorf("ollama API error: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			text.WriteString(chunk.Message.Content)
			onChunk(chunk.Message.Content)
			emitted = true
		}
		if chunk.Done {
			out.Model = firstNonEmpty(chunk.Model, modelName)
			out.Usage = Usage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount}
			gotDone = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		err = fmt.Errorf("stream scanning error: %w", err)
		if !emitted {
			return Response{}, errRetryable{err}
		}
		return Response{}, err
	}
	if !gotDone {
		err := errors.New("stream incomplete or failed to start")
		if !emitted {
			return Response{}, errRetryable{err}
		}
		return Response{}, err
	}

	out.Text = text.String()
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
