package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index", "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addFileWithChunks(t *testing.T, s *SQLiteStore, path string, vectors ...[]float32) {
	t.Helper()
	fileID, err := s.UpsertFile(FileRecord{Path: path, Hash: "h-" + path, Language: "go", SizeBytes: 100})
	require.NoError(t, err)

	chunks := make([]Chunk, len(vectors))
	for i := range vectors {
		chunks[i] = Chunk{
			Seq:       i,
			StartLine: i*10 + 1,
			EndLine:   i*10 + 10,
			Content:   "chunk content",
			Tokens:    4,
		}
	}
	ids, err := s.InsertChunks(fileID, chunks)
	require.NoError(t, err)
	require.NoError(t, s.InsertEmbeddings(ids, vectors))
}

func TestOpenExistingMissingIndex(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "absent.db"))
	require.ErrorIs(t, err, ErrNoIndex)
}

func TestOpenExistingAfterOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenExisting(path)
	require.NoError(t, err)
	defer s2.Close()

	n, err := s2.CountFiles()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetFileHash(t *testing.T) {
	s := openTestStore(t)

	hash, err := s.GetFileHash("missing.go")
	require.NoError(t, err)
	assert.Empty(t, hash)

	_, err = s.UpsertFile(FileRecord{Path: "main.go", Hash: "abc123", Language: "go"})
	require.NoError(t, err)

	hash, err = s.GetFileHash("main.go")
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}

func TestUpsertFileReplacesChunks(t *testing.T) {
	s := openTestStore(t)
	addFileWithChunks(t, s, "main.go", []float32{1, 0, 0}, []float32{0, 1, 0})

	chunks, err := s.CountChunks()
	require.NoError(t, err)
	assert.EqualValues(t, 2, chunks)

	firstID, err := s.UpsertFile(FileRecord{Path: "main.go", Hash: "new-hash", Language: "go"})
	require.NoError(t, err)

	chunks, err = s.CountChunks()
	require.NoError(t, err)
	assert.Zero(t, chunks, "upsert drops the file's old chunks")

	hash, err := s.GetFileHash("main.go")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", hash)

	results, err := s.Search([]float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results, "embeddings cascade away with their chunks")

	secondID, err := s.UpsertFile(FileRecord{Path: "main.go", Hash: "third"})
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID, "path keeps its file ID across upserts")
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	s := openTestStore(t)
	addFileWithChunks(t, s, "a.go", []float32{1, 0, 0})
	addFileWithChunks(t, s, "b.go", []float32{0, 1, 0})
	addFileWithChunks(t, s, "c.go", []float32{0.9, 0.1, 0})

	results, err := s.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a.go", results[0].Path)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, "c.go", results[1].Path)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchTieBreaksOnPathThenLine(t *testing.T) {
	s := openTestStore(t)
	same := []float32{1, 0, 0}
	addFileWithChunks(t, s, "zz.go", same)
	addFileWithChunks(t, s, "aa.go", same, same)

	results, err := s.Search(same, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "aa.go", results[0].Path)
	assert.Equal(t, 1, results[0].Chunk.StartLine)
	assert.Equal(t, "aa.go", results[1].Path)
	assert.Equal(t, 11, results[1].Chunk.StartLine)
	assert.Equal(t, "zz.go", results[2].Path)
}

func TestSearchSkipsDimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	addFileWithChunks(t, s, "a.go", []float32{1, 0, 0, 0})

	results, err := s.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchZeroLimit(t *testing.T) {
	s := openTestStore(t)
	addFileWithChunks(t, s, "a.go", []float32{1, 0, 0})

	results, err := s.Search([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInsertEmbeddingsLengthMismatch(t *testing.T) {
	s := openTestStore(t)
	fileID, err := s.UpsertFile(FileRecord{Path: "a.go", Hash: "h"})
	require.NoError(t, err)
	ids, err := s.InsertChunks(fileID, []Chunk{{Seq: 0, StartLine: 1, EndLine: 2, Content: "x"}})
	require.NoError(t, err)

	err = s.InsertEmbeddings(ids, [][]float32{{1, 0}, {0, 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatched")
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)

	value, err := s.GetMeta(MetaEmbedModel)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, s.SetMeta(MetaEmbedModel, "text-embedding-3-small"))
	require.NoError(t, s.SetMeta(MetaEmbedModel, "text-embedding-004"))

	value, err = s.GetMeta(MetaEmbedModel)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-004", value)
}

func TestClearRemovesEverything(t *testing.T) {
	s := openTestStore(t)
	addFileWithChunks(t, s, "a.go", []float32{1, 0, 0})
	require.NoError(t, s.SetMeta(MetaEmbedDim, "3"))

	require.NoError(t, s.Clear())

	files, err := s.CountFiles()
	require.NoError(t, err)
	assert.Zero(t, files)

	chunks, err := s.CountChunks()
	require.NoError(t, err)
	assert.Zero(t, chunks)

	value, err := s.GetMeta(MetaEmbedDim)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestClearThenReindexLeavesNoResidue(t *testing.T) {
	s := openTestStore(t)
	addFileWithChunks(t, s, "a.go", []float32{1, 0, 0})
	addFileWithChunks(t, s, "b.go", []float32{0, 1, 0})

	require.NoError(t, s.Clear())
	addFileWithChunks(t, s, "b.go", []float32{0, 1, 0})

	results, err := s.Search([]float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.go", results[0].Path)
}
