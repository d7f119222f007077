package classify

import (
	"context"

	"github.com/sells-group/watchlog/internal/resilience"
	"github.com/sells-group/watchlog/pkg/anthropic"
)

// Completer sends a prompt to a text model and returns its raw reply.
// Implementations report throttling with resilience.RateLimitError and
// retryable failures with resilience.TransientError.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicCompleter is a Completer backed by the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter creates a completer for model. maxTokens <= 0 uses 16,
// enough for any label.
func NewAnthropicCompleter(client anthropic.Client, model string, maxTokens int64) *AnthropicCompleter {
	if maxTokens <= 0 {
		maxTokens = 16
	}
	return &AnthropicCompleter{client: client, model: model, maxTokens: maxTokens}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", classifyAPIError(err)
	}
	resp.Usage.LogCost(c.model, "classify")
	return resp.Text(), nil
}

func classifyAPIError(err error) error {
	if code, ok := anthropic.StatusCode(err); ok {
		return resilience.FromStatus(err, code)
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
