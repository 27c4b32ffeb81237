package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	localEmbedModel = "local-hash-v1"
	localEmbedDim   = 256
)

// Local is a deterministic, offline embedder. It hashes word and character
// trigram features into a fixed-size vector, so identical text always maps
// to the identical vector and lexically similar texts land close together.
// It exists for providers without an embedding endpoint and for tests.
type Local struct{}

// NewLocal returns the deterministic local embedder.
func NewLocal() *Local { return &Local{} }

func (l *Local) Name() string       { return NameLocal }
func (l *Local) EmbedModel() string { return localEmbedModel }
func (l *Local) EmbedDim() int      { return localEmbedDim }

func (l *Local) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = hashEmbed(text)
	}
	return out, nil
}

func (l *Local) Generate(ctx context.Context, req Request) (string, error) {
	return "", fmt.Errorf("local: %w", ErrGenerationUnsupported)
}

func hashEmbed(text string) []float32 {
	vec := make([]float32, localEmbedDim)
	for _, word := range splitWords(text) {
		addFeature(vec, word)
		for i := 0; i+3 <= len(word); i++ {
			addFeature(vec, word[i:i+3])
		}
	}
	l2normalize(vec)
	return vec
}

func addFeature(vec []float32, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := sum % localEmbedDim
	if sum&(1<<63) != 0 {
		vec[idx] -= 1
	} else {
		vec[idx] += 1
	}
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// l2normalize scales v to unit length in place.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
