package decompose

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// Claude decomposes objectives through the Anthropic Messages API.
// Unlike the static decomposer it may return an arbitrary acyclic DAG.
type Claude struct {
	client anthropic.Client
	model  anthropic.Model
}

// ClaudeConfig contains configuration for the Claude decomposer.
type ClaudeConfig struct {
	// APIKey is the Anthropic API key. Falls back to ANTHROPIC_API_KEY.
	APIKey string
	// Model is the Claude model to use.
	Model anthropic.Model
}

// NewClaude creates a Claude-backed decomposer.
func NewClaude(cfg ClaudeConfig) (*Claude, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Decompose sends the objective to the model and parses the JSON subtask
// array from the response. The parsed subtasks are validated for cycles
// before being returned.
func (c *Claude) Decompose(ctx context.Context, objective string) ([]*models.Subtask, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: decompositionSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(decompositionPrompt, objective))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			response.WriteString(text.Text)
		}
	}

	subtasks, err := ParseResponse(response.String())
	if err != nil {
		return nil, fmt.Errorf("parse decomposition response: %w", err)
	}
	if err := ValidateNoCycles(subtasks); err != nil {
		return nil, fmt.Errorf("validate dependencies: %w", err)
	}
	return subtasks, nil
}
