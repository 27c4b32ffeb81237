package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitsage/internal/config"
	"gitsage/internal/loader"
	"gitsage/internal/provider"
	"gitsage/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxFileBytes:   100 * 1024,
		MaxChunkTokens: 64,
		OverlapTokens:  8,
		EmbedBatchSize: 4,
		EmbedWorkers:   2,
	}
}

func testCaller(p provider.Provider) provider.Caller {
	return provider.Caller{
		Provider: p,
		Retry:    provider.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, Multiplier: 2},
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func localSource(t *testing.T, root string) *loader.Source {
	t.Helper()
	src, err := loader.Resolve(context.Background(), root, "", "")
	require.NoError(t, err)
	return src
}

const goFileA = `package alpha

// Connect opens the database connection.
func Connect() error {
	return nil
}
`

const goFileB = `package alpha

// Render writes the html template.
func Render() string {
	return "<html></html>"
}
`

func TestLoadIndexesTree(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go":     goFileA,
		"sub/b.go": goFileB,
		"snapshot": "\x00\x01\x02",
	})
	s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	defer s.Close()

	idx := New(s, testCaller(provider.NewLocal()), testConfig())
	stats, err := idx.Load(context.Background(), localSource(t, root), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesTotal)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Empty(t, stats.FailedFiles)
	assert.Greater(t, stats.ChunksTotal, 0)
	assert.Equal(t, 1, stats.Walk.SkippedBinary)

	files, err := s.CountFiles()
	require.NoError(t, err)
	assert.EqualValues(t, 2, files)

	chunks, err := s.CountChunks()
	require.NoError(t, err)
	assert.EqualValues(t, stats.ChunksTotal, chunks)

	model, err := s.GetMeta(store.MetaEmbedModel)
	require.NoError(t, err)
	assert.Equal(t, provider.NewLocal().EmbedModel(), model)

	origin, err := s.GetMeta(store.MetaRepoOrigin)
	require.NoError(t, err)
	assert.Equal(t, root, origin)
}

func TestLoadClearsPreviousIndex(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": goFileA, "b.go": goFileB})
	s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	defer s.Close()

	idx := New(s, testCaller(provider.NewLocal()), testConfig())
	_, err = idx.Load(context.Background(), localSource(t, root), Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))

	stats, err := idx.Load(context.Background(), localSource(t, root), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)

	files, err := s.CountFiles()
	require.NoError(t, err)
	assert.EqualValues(t, 1, files, "removed files must not survive a reload")
}

func TestLoadKeepIndexSkipsUnchanged(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": goFileA, "b.go": goFileB})
	s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	defer s.Close()

	idx := New(s, testCaller(provider.NewLocal()), testConfig())
	_, err = idx.Load(context.Background(), localSource(t, root), Options{})
	require.NoError(t, err)

	stats, err := idx.Load(context.Background(), localSource(t, root), Options{KeepIndex: true})
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesSkipped)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte(goFileA+"\n// changed\n"), 0o644))

	stats, err = idx.Load(context.Background(), localSource(t, root), Options{KeepIndex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
}

type failingEmbedder struct {
	*provider.Local
	marker string
}

func (f *failingEmbedder) EmbedModel() string { return "failing-embed" }

func (f *failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, f.marker) {
			return nil, fmt.Errorf("embedding backend rejected input")
		}
	}
	return f.Local.Embed(ctx, texts)
}

func TestLoadEmbedFailurePreservesPriorWrites(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": goFileA})
	s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	defer s.Close()

	failing := &failingEmbedder{Local: provider.NewLocal(), marker: "FAILMARK"}
	idx := New(s, testCaller(failing), testConfig())

	_, err = idx.Load(context.Background(), localSource(t, root), Options{})
	require.NoError(t, err, "no file carries the marker yet")

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package alpha\n\n// FAILMARK\n"), 0o644))

	stats, err := idx.Load(context.Background(), localSource(t, root), Options{KeepIndex: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed")
	assert.Contains(t, stats.FailedFiles, "b.go")

	files, err := s.CountFiles()
	require.NoError(t, err)
	assert.EqualValues(t, 1, files, "previously indexed file survives the failed load")
}

func TestLoadKeepIndexRebuildsOnModelChange(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": goFileA})
	s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	defer s.Close()

	idx := New(s, testCaller(provider.NewLocal()), testConfig())
	_, err = idx.Load(context.Background(), localSource(t, root), Options{})
	require.NoError(t, err)

	other := &failingEmbedder{Local: provider.NewLocal(), marker: "NEVER"}
	idx2 := New(s, testCaller(other), testConfig())

	stats, err := idx2.Load(context.Background(), localSource(t, root), Options{KeepIndex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed, "model change forces re-embedding despite --keep-index")

	model, err := s.GetMeta(store.MetaEmbedModel)
	require.NoError(t, err)
	assert.Equal(t, "failing-embed", model)
}

func TestLoadReportsProgress(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": goFileA, "b.go": goFileB})
	s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	defer s.Close()

	var calls int
	idx := New(s, testCaller(provider.NewLocal()), testConfig())
	_, err = idx.Load(context.Background(), localSource(t, root), Options{
		Progress: func(done, total int) { calls++ },
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
