package engine

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/redev-labs/complex-scanner/internal/resilience"
	"github.com/redev-labs/complex-scanner/pkg/perplexity"
)

const perplexitySystemPrompt = "You are a real-estate research assistant. " +
	"Ground every fact in current web sources and answer with JSON only."

// PerplexityEngine adapts the Perplexity client to the research-engine
// contract.
type PerplexityEngine struct {
	client perplexity.Client
}

// NewPerplexityEngine wraps a Perplexity client.
func NewPerplexityEngine(client perplexity.Client) *PerplexityEngine {
	return &PerplexityEngine{client: client}
}

// Name implements ResearchEngine.
func (e *PerplexityEngine) Name() string {
	return "perplexity"
}

// Research implements ResearchEngine. Retryable HTTP statuses are classified
// as transient so the caller's backoff policy applies.
func (e *PerplexityEngine) Research(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: perplexitySystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		var statusErr *perplexity.StatusError
		if errors.As(err, &statusErr) && resilience.IsTransientHTTPStatus(statusErr.Code) {
			return "", resilience.NewTransientError(err, statusErr.Code)
		}
		return "", eris.Wrap(err, "perplexity research")
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
