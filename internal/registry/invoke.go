package registry

import "context"

// Output is a structured candidate result.
type Output struct {
	Content     string
	AgentModels map[string]string
}

// Supported candidate signatures. Plain func literals with the same shape are accepted too.
type (
	Func           func(ctx context.Context) (Output, error)
	PromptFunc     func(ctx context.Context, prompt string) (Output, error)
	TextFunc       func(ctx context.Context) (string, error)
	PromptTextFunc func(ctx context.Context, prompt string) (string, error)
)

// Bind normalizes a handle into a single call shape. ok is false for unsupported handles.
func Bind(handle any) (call func(ctx context.Context, prompt string) (Output, error), ok bool) {
	switch h := handle.(type) {
	case func(context.Context) (Output, error):
		return func(ctx context.Context, _ string) (Output, error) { return h(ctx) }, true
	case Func:
		return func(ctx context.Context, _ string) (Output, error) { return h(ctx) }, true
	case func(context.Context, string) (Output, error):
		return h, true
	case PromptFunc:
		return h, true
	case func(context.Context) (string, error):
		return func(ctx context.Context, _ string) (Output, error) {
			s, err := h(ctx)
			return Output{Content: s}, err
		}, true
	case TextFunc:
		return func(ctx context.Context, _ string) (Output, error) {
			s, err := h(ctx)
			return Output{Content: s}, err
		}, true
	case func(context.Context, string) (string, error):
		return func(ctx context.Context, prompt string) (Output, error) {
			s, err := h(ctx, prompt)
			return Output{Content: s}, err
		}, true
	case PromptTextFunc:
		return func(ctx context.Context, prompt string) (Output, error) {
			s, err := h(ctx, prompt)
			return Output{Content: s}, err
		}, true
	default:
		return nil, false
	}
}
