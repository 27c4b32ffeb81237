package store

import "time"

// FileRecord represents an indexed source file.
type FileRecord struct {
	ID        int64
	Path      string
	Hash      string
	Language  string
	SizeBytes int64
	IndexedAt time.Time
}

// Chunk is a stored slice of a source file with its line provenance.
type Chunk struct {
	ID        int64
	FileID    int64
	Seq       int
	StartLine int
	EndLine   int
	Content   string
	Tokens    int
}

// SearchResult is a chunk with its file path and similarity score.
// Similarity is cosine similarity, higher is closer.
type SearchResult struct {
	Chunk      Chunk
	Path       string
	Language   string
	Similarity float64
}

// Meta keys written at index time.
const (
	MetaEmbedModel = "embed_model"
	MetaEmbedDim   = "embed_dim"
	MetaRepoOrigin = "repo_origin"
	MetaIndexedAt  = "indexed_at"
)
