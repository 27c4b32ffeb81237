// Package provider abstracts the LLM backends behind a single capability
// interface covering embedding and generation. OpenAI, Gemini, and Claude are
// supported for generation; Claude has no embedding endpoint, so indexes
// built under it fall back to the deterministic local embedder.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Supported provider names.
const (
	NameOpenAI = "openai"
	NameGemini = "gemini"
	NameClaude = "claude"
	NameLocal  = "local"
)

var (
	// ErrNoCredential means the provider has no API key configured.
	ErrNoCredential = errors.New("no API key configured")
	// ErrEmbeddingUnsupported means the provider has no embedding endpoint.
	ErrEmbeddingUnsupported = errors.New("provider does not support embeddings")
	// ErrGenerationUnsupported means the provider cannot generate text.
	ErrGenerationUnsupported = errors.New("provider does not support generation")
)

// Request is a single generation call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int // 0 means the provider default
}

// Provider is the capability surface the rest of gitsage depends on.
type Provider interface {
	// Name returns the provider's registry name.
	Name() string
	// EmbedModel identifies the embedding model, "" when unsupported.
	EmbedModel() string
	// EmbedDim returns the embedding dimension, 0 when unsupported.
	EmbedDim() int
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Generate runs one completion call and returns the response text.
	Generate(ctx context.Context, req Request) (string, error)
}

// New constructs the named provider with the given credential. The local
// provider ignores the credential.
func New(ctx context.Context, name, apiKey string) (Provider, error) {
	switch name {
	case NameOpenAI:
		return NewOpenAI(apiKey)
	case NameGemini:
		return NewGemini(ctx, apiKey)
	case NameClaude:
		return NewClaude(apiKey)
	case NameLocal:
		return NewLocal(), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", name)
	}
}

// EmbedderFor returns p when it can embed, otherwise the local embedder.
func EmbedderFor(p Provider) Provider {
	if p != nil && p.EmbedDim() > 0 {
		return p
	}
	return NewLocal()
}
