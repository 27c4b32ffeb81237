package provider

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openAIChatModel  = "gpt-4.1-nano"
	openAIEmbedModel = "text-embedding-3-small"
	openAIEmbedDim   = 1536
)

// OpenAI serves embeddings and completions from the OpenAI API.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI returns an OpenAI provider using the given API key.
func NewOpenAI(apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNoCredential)
	}
	return &OpenAI{client: openai.NewClient(apiKey)}, nil
}

func (o *OpenAI) Name() string       { return NameOpenAI }
func (o *OpenAI) EmbedModel() string { return openAIEmbedModel }
func (o *OpenAI) EmbedDim() int      { return openAIEmbedDim }

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(openAIEmbedModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			vec[j] = float32(d.Embedding[j])
		}
		l2normalize(vec)
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = vec
	}
	return out, nil
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     openAIChatModel,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
