package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	geminiChatModel  = "gemini-2.0-flash-lite"
	geminiEmbedModel = "text-embedding-004"
	geminiEmbedDim   = 768
)

// Gemini serves embeddings and completions from the Gemini API.
type Gemini struct {
	client *genai.Client
}

// NewGemini returns a Gemini provider using the given API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoCredential)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Name() string       { return NameGemini }
func (g *Gemini) EmbedModel() string { return geminiEmbedModel }
func (g *Gemini) EmbedDim() int      { return geminiEmbedDim }

func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	resp, err := g.client.Models.EmbedContent(ctx, geminiEmbedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vec := make([]float32, len(emb.Values))
		copy(vec, emb.Values)
		l2normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	var config *genai.GenerateContentConfig
	if req.System != "" || req.MaxTokens > 0 {
		config = &genai.GenerateContentConfig{}
		if req.System != "" {
			config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
		}
		if req.MaxTokens > 0 {
			config.MaxOutputTokens = int32(req.MaxTokens)
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, geminiChatModel, genai.Text(req.Prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return strings.TrimSpace(text), nil
}
