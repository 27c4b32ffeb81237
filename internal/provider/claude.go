package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	claudeModel            = "claude-3-5-sonnet-20240620"
	claudeDefaultMaxTokens = 4000
)

// Claude serves completions from the Anthropic API. It has no embedding
// endpoint; callers pair it with the local embedder for indexing.
type Claude struct {
	client anthropic.Client
}

// NewClaude returns a Claude provider using the given API key.
func NewClaude(apiKey string) (*Claude, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrNoCredential)
	}
	return &Claude{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

func (c *Claude) Name() string       { return NameClaude }
func (c *Claude) EmbedModel() string { return "" }
func (c *Claude) EmbedDim() int      { return 0 }

func (c *Claude) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("claude: %w", ErrEmbeddingUnsupported)
}

func (c *Claude) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = claudeDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(claudeModel),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude generate: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("claude generate: empty response")
	}
	return strings.TrimSpace(sb.String()), nil
}
