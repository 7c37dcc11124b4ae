package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/daryltucker/forest-bench/internal/llm"
)

// AttrResponseChunks counts streamed deltas. Informational only.
const AttrResponseChunks = "gen_ai.response.chunks"

type instrumented struct {
	next  llm.Client
	label string
}

// Instrument wraps client so every successful call emits a chat Event into the
// Scope bound to the call's context. Calls without a scope are passed through.
func Instrument(client llm.Client, label string) llm.Client {
	return &instrumented{next: client, label: label}
}

func (c *instrumented) Chat(ctx context.Context, req llm.Request) (llm.Response, error) {
	scope := ScopeFrom(ctx)
	if scope == nil {
		return c.next.Chat(ctx, req)
	}

	var chunks, streamed int64
	if onChunk := req.OnChunk; onChunk != nil {
		req.OnChunk = func(s string) {
			atomic.AddInt64(&chunks, 1)
			atomic.AddInt64(&streamed, int64(len(s)))
			onChunk(s)
		}
	}

	start := time.Now()
	resp, err := c.next.Chat(ctx, req)
	if err != nil {
		return resp, err
	}

	length := len(resp.Text)
	if length == 0 {
		length = int(atomic.LoadInt64(&streamed))
	}
	model := resp.Model
	if model == "" {
		model = req.Model
	}

	scope.Observe(Event{
		OperationName: "chat",
		DisplayName:   "chat " + model,
		Start:         start,
		Duration:      time.Since(start),
		Attributes: map[string]any{
			AttrSystem:           c.label,
			AttrRequestModel:     model,
			AttrUsageInput:       resp.Usage.InputTokens,
			AttrUsageOutput:      resp.Usage.OutputTokens,
			AttrResponseLength:   length,
			AttrRequestMessages:  len(req.Messages),
			AttrRequestStreaming: req.Streaming(),
			AttrResponseChunks:   atomic.LoadInt64(&chunks),
		},
	})
	return resp, nil
}
