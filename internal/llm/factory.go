package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProviderConfig selects and configures a model provider.
// It is filled from config.Config by the CLI; nothing here reads the environment.
type ProviderConfig struct {
	Name          string // "ollama" or "openai"
	Endpoint      string
	APIKey        string
	MaxRetries    int
	RetryDelay    time.Duration
	LoadTimeout   time.Duration
	StreamTimeout time.Duration
	KeepAlive     string
	Logger        *slog.Logger
}

// Lister is implemented by providers that can enumerate their models.
type Lister interface {
	Models(ctx context.Context) ([]string, error)
}

// NewFactory returns a Factory producing clients bound to a model on the configured provider.
func NewFactory(pc ProviderConfig) (Factory, error) {
	switch strings.ToLower(pc.Name) {
	case "", "ollama":
		return func(model string) (Client, error) {
			return NewOllama(OllamaConfig{
				BaseURL:       pc.Endpoint,
				Model:         model,
				MaxRetries:    pc.MaxRetries,
				RetryDelay:    pc.RetryDelay,
				LoadTimeout:   pc.LoadTimeout,
				StreamTimeout: pc.StreamTimeout,
				KeepAlive:     pc.KeepAlive,
				Logger:        pc.Logger,
			}), nil
		}, nil
	case "openai", "openai-compatible":
		return func(model string) (Client, error) {
			return NewOpenAI(OpenAIConfig{
				BaseURL:       pc.Endpoint,
				APIKey:        pc.APIKey,
				Model:         model,
				MaxRetries:    pc.MaxRetries,
				RetryDelay:    pc.RetryDelay,
				StreamTimeout: pc.LoadTimeout + pc.StreamTimeout,
				Logger:        pc.Logger,
			}), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want ollama or openai)", pc.Name)
	}
}

// NewLister returns a model lister for the configured provider.
func NewLister(pc ProviderConfig) (Lister, error) {
	f, err := NewFactory(pc)
	if err != nil {
		return nil, err
	}
	c, err := f("")
	if err != nil {
		return nil, err
	}
	l, ok := c.(Lister)
	if !ok {
		return nil, fmt.Errorf("provider %q cannot list models", pc.Name)
	}
	return l, nil
}
