package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/redev-labs/complex-scanner/pkg/claude"
)

const claudeSystemPrompt = "You are a real-estate research assistant. " +
	"Answer with a single JSON object and omit anything you cannot verify."

// ClaudeEngine adapts the Anthropic client to the research-engine contract.
type ClaudeEngine struct {
	client claude.Client
}

// NewClaudeEngine wraps a Claude client.
func NewClaudeEngine(client claude.Client) *ClaudeEngine {
	return &ClaudeEngine{client: client}
}

// Name implements ResearchEngine.
func (e *ClaudeEngine) Name() string {
	return "claude"
}

// Research implements ResearchEngine.
func (e *ClaudeEngine) Research(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.CreateMessage(ctx, claude.MessageRequest{
		System:   claudeSystemPrompt,
		Messages: []claude.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "claude research")
	}
	return resp.Text(), nil
}
