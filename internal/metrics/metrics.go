/*
PURPOSE:
  Per-invocation cost and latency accounting.
  A Scope collects one CallMetric per model call made while a candidate runs
  and is closed into an immutable Aggregated summary.

REQUIREMENTS:
  User-specified:
  - Only chat operations are counted.
  - Missing or malformed attributes never fail; they degrade to zero/default values.
  - Appends may arrive from a different goroutine than the one that opened the scope
    (streaming callbacks), so the list is mutex-guarded.

  Implementation-discovered:
  - Scopes travel in context.Context so instrumented clients built once can be shared
    across candidates without cross-talk.

ARCHITECTURE INTEGRATION:
  - Opened/closed by: internal/engine (one scope per candidate invocation)
  - Fed by: instrument.go

ERROR HANDLING:
  - None. Nothing in this package returns an error or panics on bad input.

USAGE:
  s := metrics.NewScope()
  ctx = metrics.WithScope(ctx, s)
  ... candidate runs ...
  agg := s.Close()

RELATED FILES:
  - internal/metrics/instrument.go
*/

package metrics

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Attribute keys understood by Observe.
const (
	AttrSystem            = "gen_ai.system"
	AttrRequestModel      = "gen_ai.request.model"
	AttrUsageInput        = "gen_ai.usage.input_tokens"
	AttrRequestInput      = "gen_ai.request.input_tokens"
	AttrUsageOutput       = "gen_ai.usage.output_tokens"
	AttrResponseOutput    = "gen_ai.response.output_tokens"
	AttrResponseLength    = "gen_ai.response.length"
	AttrRequestMessages   = "gen_ai.request.message_count"
	AttrRequestStreaming  = "gen_ai.request.streaming"
	defaultClientLabel    = "unknown"
	chatOperationFragment = "chat"
)

// CallMetric is one model invocation.
type CallMetric struct {
	ClientLabel    string    `json:"client_label"`
	Timestamp      time.Time `json:"timestamp"`
	LatencyMs      float64   `json:"latency_ms"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	ResponseLength int       `json:"response_length"`
	MessageCount   int       `json:"message_count"`
	WasStreaming   bool      `json:"was_streaming"`
}

// TotalTokens is input plus output tokens.
func (c CallMetric) TotalTokens() int { return c.InputTokens + c.OutputTokens }

// Aggregated summarizes a snapshot of calls. Build it with Aggregate.
type Aggregated struct {
	TotalCalls          int          `json:"total_calls"`
	TotalLatencyMs      float64      `json:"total_latency_ms"`
	AverageLatencyMs    float64      `json:"average_latency_ms"`
	TotalInputTokens    int          `json:"total_input_tokens"`
	TotalOutputTokens   int          `json:"total_output_tokens"`
	TotalTokens         int          `json:"total_tokens"`
	TotalResponseLength int          `json:"total_response_length"`
	Calls               []CallMetric `json:"calls,omitempty"`
}

// Aggregate builds the summary for calls. The slice is copied.
func Aggregate(calls []CallMetric) Aggregated {
	agg := Aggregated{Calls: append([]CallMetric(nil), calls...)}
	for _, c := range calls {
		agg.TotalCalls++
		agg.TotalLatencyMs += c.LatencyMs
		agg.TotalInputTokens += c.InputTokens
		agg.TotalOutputTokens += c.OutputTokens
		agg.TotalResponseLength += c.ResponseLength
	}
	agg.TotalTokens = agg.TotalInputTokens + agg.TotalOutputTokens
	if agg.TotalCalls > 0 {
		agg.AverageLatencyMs = agg.TotalLatencyMs / float64(agg.TotalCalls)
	}
	return agg
}

// Event is an instrumentation record of one operation.
type Event struct {
	OperationName string
	DisplayName   string
	Start         time.Time
	Duration      time.Duration
	Attributes    map[string]any
}

// Scope collects call metrics for one candidate invocation.
type Scope struct {
	mu     sync.Mutex
	calls  []CallMetric
	closed bool
}

// NewScope opens an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Observe converts a chat event into a CallMetric and records it.
// Events whose operation name does not contain "chat" are ignored.
func (s *Scope) Observe(ev Event) {
	if !strings.Contains(strings.ToLower(ev.OperationName), chatOperationFragment) {
		return
	}
	s.Record(FromEvent(ev))
}

// Record appends a metric. Records after Close are dropped.
func (s *Scope) Record(m CallMetric) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.calls = append(s.calls, m)
}

// Close stops collection and returns the aggregate of everything recorded.
// Calling Close again returns the same aggregate.
func (s *Scope) Close() Aggregated {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return Aggregate(s.calls)
}

// FromEvent extracts a CallMetric from an event's attributes.
func FromEvent(ev Event) CallMetric {
	attrs := ev.Attributes

	label := attrString(attrs, AttrSystem)
	if label == "" {
		label = attrString(attrs, AttrRequestModel)
	}
	if label == "" {
		label = ev.DisplayName
	}
	if label == "" {
		label = defaultClientLabel
	}

	msgCount := 1
	if v, ok := attrs[AttrRequestMessages]; ok {
		if n, ok := toInt(v); ok {
			msgCount = n
		}
	}

	return CallMetric{
		ClientLabel:    label,
		Timestamp:      ev.Start,
		LatencyMs:      float64(ev.Duration) / float64(time.Millisecond),
		InputTokens:    firstInt(attrs, AttrUsageInput, AttrRequestInput),
		OutputTokens:   firstInt(attrs, AttrUsageOutput, AttrResponseOutput),
		ResponseLength: firstInt(attrs, AttrResponseLength),
		MessageCount:   msgCount,
		WasStreaming:   toBool(attrs[AttrRequestStreaming]),
	}
}

type scopeKey struct{}

// WithScope binds s to ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope bound to ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	default:
		return ""
	}
}

func firstInt(attrs map[string]any, keys ...string) int {
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok {
			continue
		}
		if n, ok := toInt(v); ok {
			return n
		}
	}
	return 0
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && ok
	default:
		return false
	}
}
