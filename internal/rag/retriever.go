// Package rag retrieves indexed chunks for a query and assembles them
// into a token-bounded context for prompting.
package rag

import (
	"context"
	"fmt"
	"sort"

	"gitsage/internal/config"
	"gitsage/internal/provider"
	"gitsage/internal/store"
	"gitsage/internal/token"
)

// overFetchFactor widens the store search so the token trim still has
// enough candidates after ranking.
const overFetchFactor = 4

// Retriever embeds a question and finds the closest indexed chunks.
type Retriever struct {
	store    store.Store
	embedder provider.Caller
	topK     int
	budget   int
}

// NewRetriever builds a Retriever over s using cfg's top_k and retrieve
// token budget.
func NewRetriever(s store.Store, embedder provider.Caller, cfg *config.Config) *Retriever {
	return &Retriever{
		store:    s,
		embedder: embedder,
		topK:     cfg.TopK,
		budget:   cfg.RetrieveTokenBudget,
	}
}

// Retrieve returns up to k chunks ranked by similarity, trimmed so their
// combined content stays inside the retrieve token budget. k <= 0 uses
// the configured top_k. An empty index returns store.ErrNoIndex.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]store.SearchResult, error) {
	if k <= 0 {
		k = r.topK
	}
	if k <= 0 {
		k = 5
	}

	count, err := r.store.CountChunks()
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		return nil, store.ErrNoIndex
	}

	if err := r.checkEmbedModel(); err != nil {
		return nil, err
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	results, err := r.store.Search(vecs[0], k*overFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return trimToBudget(results, r.budget), nil
}

// checkEmbedModel refuses to search an index built with a different
// embedding model, since those vector spaces are incompatible.
func (r *Retriever) checkEmbedModel() error {
	indexed, err := r.store.GetMeta(store.MetaEmbedModel)
	if err != nil {
		return fmt.Errorf("read meta: %w", err)
	}
	current := r.embedder.Provider.EmbedModel()
	if indexed != "" && indexed != current {
		return fmt.Errorf("index was built with embedding model %q but the current provider uses %q: run load again", indexed, current)
	}
	return nil
}

// sortResults orders by similarity, breaking ties by path then start line
// so equal scores always rank the same way.
func sortResults(results []store.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return results[i].Chunk.StartLine < results[j].Chunk.StartLine
	})
}

// trimToBudget drops results from the tail until the combined content
// fits the token budget. The best result is always kept.
func trimToBudget(results []store.SearchResult, budget int) []store.SearchResult {
	if budget <= 0 {
		return results
	}
	total := 0
	for i, r := range results {
		cost := r.Chunk.Tokens
		if cost == 0 {
			cost = token.Estimate(r.Chunk.Content)
		}
		total += cost
		if total > budget && i > 0 {
			return results[:i]
		}
	}
	return results
}
