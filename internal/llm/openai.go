/*
PURPOSE:
  Client for OpenAI-compatible chat completion endpoints
  (OpenAI, vLLM, llama.cpp server, LM Studio, Ollama's /v1 shim).

REQUIREMENTS:
  User-specified:
  - Same Client contract as the Ollama client.

  Implementation-discovered:
  - Streaming uses server-sent events: "data: {json}" lines terminated by "data: [DONE]".
  - Usage is only present in the final chunk when stream_options.include_usage is set.

ARCHITECTURE INTEGRATION:
  - Built by: factory.go

ERROR HANDLING:
  - Same retry policy as ollama.go: connection failures before any output are retried.

IMPLEMENTATION RULES:
  - Use net/http.
  - The API key is passed in explicitly; this file never reads the environment.

RELATED FILES:
  - internal/llm/ollama.go
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

// OpenAIConfig configures an OpenAI-compatible client.
type OpenAIConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxRetries    int
	RetryDelay    time.Duration
	StreamTimeout time.Duration
	Logger        *slog.Logger
}

// OpenAI talks to an OpenAI-compatible endpoint.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI-compatible client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{cfg: cfg, client: &http.Client{}, logger: logger}
}

// Models lists model ids from /models.
func (o *OpenAI) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	o.authorize(req)
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat implements Client.
func (o *OpenAI) Chat(ctx context.Context, req Request) (Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = o.cfg.Model
	}
	if modelName == "" {
		return Response{}, errors.New("openai: no model specified")
	}

	msgs := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, map[string]string{"role": string(m.Role), "content": m.Text})
	}
	payload := map[string]interface{}{
		"model":    modelName,
		"messages": msgs,
		"stream":   req.Streaming(),
	}
	for k, v := range req.Options {
		payload[k] = v
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.Streaming() {
		payload["stream_options"] = map[string]bool{"include_usage": true}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("openai: encode request: %w", err)
	}

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
		resp, err := o.chatOnce(ctx, modelName, body, req.OnChunk)
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

func (o *OpenAI) authorize(req *http.Request) {
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}
}

func (o *OpenAI) chatOnce(ctx context.Context, modelName string, body []byte, onChunk func(string)) (Response, error) {
	if o.cfg.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StreamTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	o.authorize(httpReq)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Response{}, errRetryable{fmt.Errorf("network/connection error: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Response{}, fmt.Errorf("openai server error (%s): %s", resp.Status, strings.TrimSpace(string(b)))
	}

	if onChunk == nil {
		var data openAIResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return Response{}, fmt.Errorf("openai returned invalid JSON: %w", err)
		}
		if data.Error != nil {
			return Response{}, fmt.Errorf("openai API error: %s", data.Error.Message)
		}
		out := Response{Model: firstNonEmpty(data.Model, modelName)}
		if len(data.Choices) > 0 {
			out.Text = data.Choices[0].Message.Content
		}
		if data.Usage != nil {
			out.Usage = Usage{InputTokens: data.Usage.PromptTokens, OutputTokens: data.Usage.CompletionTokens}
		}
		return out, nil
	}

	return o.processEvents(resp.Body, modelName, onChunk)
}

func (o *OpenAI) processEvents(body io.Reader, modelName string, onChunk func(string)) (Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var text strings.Builder
	out := Response{Model: modelName}
	gotDone := false
	emitted := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			gotDone = true
			break
		}

		var chunk openAIResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			o.logger.Warn("Skipping invalid JSON chunk", "chunk", data)
			continue
		}
		if chunk.Error != nil {
			return Response{}, fmt.Errorf("openai API error: %s", chunk.Error.Message)
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content != "" {
				text.WriteString(c.Delta.Content)
				onChunk(c.Delta.Content)
				emitted = true
			}
		}
		if chunk.Usage != nil {
			out.Usage = Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
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
