package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	embedCalls    int
	embedInputs   [][]string
	generateCalls int

	embedFn    func(texts []string) ([][]float32, error)
	generateFn func(req Request) (string, error)
}

func (f *fakeProvider) Name() string       { return "fake" }
func (f *fakeProvider) EmbedModel() string { return "fake-embed" }
func (f *fakeProvider) EmbedDim() int      { return 4 }

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	f.embedInputs = append(f.embedInputs, append([]string(nil), texts...))
	if f.embedFn != nil {
		return f.embedFn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	f.generateCalls++
	if f.generateFn != nil {
		return f.generateFn(req)
	}
	return "ok", nil
}

func TestNewRejectsUnknownName(t *testing.T) {
	_, err := New(context.Background(), "mistral", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestNewRequiresCredential(t *testing.T) {
	for _, name := range []string{NameOpenAI, NameGemini, NameClaude} {
		_, err := New(context.Background(), name, "")
		require.ErrorIs(t, err, ErrNoCredential, name)
	}
}

func TestNewLocalNeedsNoCredential(t *testing.T) {
	p, err := New(context.Background(), NameLocal, "")
	require.NoError(t, err)
	assert.Equal(t, NameLocal, p.Name())
}

func TestEmbedderForKeepsEmbeddingProviders(t *testing.T) {
	fake := &fakeProvider{}
	assert.Equal(t, Provider(fake), EmbedderFor(fake))
}

func TestEmbedderForFallsBackToLocal(t *testing.T) {
	claude, err := NewClaude("test-key")
	require.NoError(t, err)

	embedder := EmbedderFor(claude)
	assert.Equal(t, NameLocal, embedder.Name())
	assert.Equal(t, localEmbedDim, embedder.EmbedDim())

	assert.Equal(t, NameLocal, EmbedderFor(nil).Name())
}

func TestClaudeEmbedUnsupported(t *testing.T) {
	claude, err := NewClaude("test-key")
	require.NoError(t, err)

	_, err = claude.Embed(context.Background(), []string{"text"})
	require.ErrorIs(t, err, ErrEmbeddingUnsupported)
}

func TestLocalEmbedDeterministic(t *testing.T) {
	local := NewLocal()

	first, err := local.Embed(context.Background(), []string{"open the database connection"})
	require.NoError(t, err)
	second, err := local.Embed(context.Background(), []string{"open the database connection"})
	require.NoError(t, err)

	assert.Equal(t, first[0], second[0])
	assert.Len(t, first[0], localEmbedDim)
}

func TestLocalEmbedUnitLength(t *testing.T) {
	local := NewLocal()

	vecs, err := local.Embed(context.Background(), []string{"func connect() error { return nil }"})
	require.NoError(t, err)

	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestLocalEmbedRanksRelatedTextHigher(t *testing.T) {
	local := NewLocal()

	vecs, err := local.Embed(context.Background(), []string{
		"database connection",
		"def connect_db(): open the database connection",
		"render the html template for the login page",
	})
	require.NoError(t, err)

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
	assert.Greater(t, related, float32(0))
}

func TestLocalGenerateUnsupported(t *testing.T) {
	_, err := NewLocal().Generate(context.Background(), Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrGenerationUnsupported)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func TestEmbedEmptyInput(t *testing.T) {
	local := NewLocal()
	vecs, err := local.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestLocalEmbedHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal().Embed(ctx, []string{"text"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRequestZeroMaxTokensMeansDefault(t *testing.T) {
	fake := &fakeProvider{generateFn: func(req Request) (string, error) {
		assert.Equal(t, 0, req.MaxTokens)
		return "ok", nil
	}}
	_, err := fake.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
}

func TestErrNoCredentialIsSentinel(t *testing.T) {
	_, err := NewOpenAI("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCredential))
}
