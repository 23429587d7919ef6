package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/minho5235/jammin/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Service performs one-shot completions against an OpenAI-compatible
// endpoint. Failures are not errors at this layer: they come back as a
// readable string on the same channel as a normal reply, and the caller
// displays whatever it receives.
type Service struct {
	llm     llms.Model
	timeout time.Duration
}

// New builds a Service from configuration.
func New(cfg config.AIConfig) (*Service, error) {
	client, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("completion client: %w", err)
	}
	return NewWithModel(client, cfg.Timeout), nil
}

// NewWithModel wraps an existing model, mainly for tests.
func NewWithModel(model llms.Model, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{llm: model, timeout: timeout}
}

// Complete sends prompt and returns the reply text, or an error string in
// its place. It never returns an empty string for a failure.
func (s *Service) Complete(ctx context.Context, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return completion
}

// Disabled stands in for Service when no credential is configured. Every
// call answers with the same notice instead of a completion.
type Disabled struct {
	Notice string
}

// NewDisabled builds the no-credential gateway.
func NewDisabled() *Disabled {
	return &Disabled{Notice: "Text completion is disabled: set GEMINI_API_KEY to enable replies."}
}

func (d *Disabled) Complete(context.Context, string) string {
	return d.Notice
}
