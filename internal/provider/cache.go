package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cachedProvider memoizes Embed results in an LRU keyed by content hash.
// Generate passes through untouched.
type cachedProvider struct {
	Provider
	cache *lru.Cache[string, []float32]
}

// WithCache wraps p with an embedding cache of the given size. Size <= 0
// returns p unchanged.
func WithCache(p Provider, size int) Provider {
	if size <= 0 {
		return p
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return p
	}
	return &cachedProvider{Provider: p, cache: cache}
}

func (c *cachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(cacheKey(text)); ok {
			out[i] = copyVector(vec)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.Provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		i := missIdx[j]
		out[i] = vec
		c.cache.Add(cacheKey(texts[i]), copyVector(vec))
	}
	return out, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func copyVector(vec []float32) []float32 {
	dup := make([]float32, len(vec))
	copy(dup, vec)
	return dup
}
