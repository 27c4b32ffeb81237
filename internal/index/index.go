// Package index builds the repository index: it walks the working tree,
// chunks each file, embeds the chunks, and stores everything in the
// repository's database.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"gitsage/internal/chunker"
	"gitsage/internal/chunker/languages"
	"gitsage/internal/config"
	"gitsage/internal/loader"
	"gitsage/internal/provider"
	"gitsage/internal/store"
	"gitsage/internal/walker"
)

// ProgressFunc reports files stored so far out of the total walked.
type ProgressFunc func(done, total int)

// Options controls a single Load run.
type Options struct {
	// KeepIndex skips the usual clear-before-load, so unchanged files
	// are kept and only new or modified ones are re-embedded.
	KeepIndex bool
	Progress  ProgressFunc
}

// Stats reports indexing results.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int // unchanged since the last load
	FilesFailed  int
	FailedFiles  []string // paths that could not be read or embedded
	ChunksTotal  int
	Walk         walker.Report
}

// Indexer drives the walk-chunk-embed-store pipeline for one repository.
type Indexer struct {
	store    store.Store
	embedder provider.Caller
	chunker  *chunker.Chunker
	registry *chunker.Registry
	cfg      *config.Config
}

// New creates an Indexer writing to s and embedding through embedder.
func New(s store.Store, embedder provider.Caller, cfg *config.Config) *Indexer {
	registry := chunker.NewRegistry()
	languages.RegisterAll(registry)

	return &Indexer{
		store:    s,
		embedder: embedder,
		chunker: chunker.New(chunker.Config{
			MaxTokens: cfg.MaxChunkTokens,
			Overlap:   cfg.OverlapTokens,
		}, chunker.NewHinter(registry)),
		registry: registry,
		cfg:      cfg,
	}
}

// Load indexes the source's working tree. Unless opts.KeepIndex is set the
// existing index is cleared first, so a load is also a re-load. On failure
// everything stored before the failure remains queryable.
func (idx *Indexer) Load(ctx context.Context, src *loader.Source, opts Options) (*Stats, error) {
	embedModel := idx.embedder.Provider.EmbedModel()

	if !opts.KeepIndex {
		if err := idx.store.Clear(); err != nil {
			return nil, fmt.Errorf("clear index: %w", err)
		}
	} else {
		lastModel, err := idx.store.GetMeta(store.MetaEmbedModel)
		if err != nil {
			return nil, fmt.Errorf("read meta: %w", err)
		}
		if lastModel != "" && lastModel != embedModel {
			slog.Warn("embedding model changed, rebuilding index", "from", lastModel, "to", embedModel)
			if err := idx.store.Clear(); err != nil {
				return nil, fmt.Errorf("clear index: %w", err)
			}
		}
	}

	stats, err := idx.runPipeline(ctx, src.WorkDir, opts.Progress)
	if err != nil {
		return stats, err
	}

	meta := map[string]string{
		store.MetaEmbedModel: embedModel,
		store.MetaEmbedDim:   strconv.Itoa(idx.embedder.Provider.EmbedDim()),
		store.MetaRepoOrigin: src.Origin,
		store.MetaIndexedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range meta {
		if err := idx.store.SetMeta(key, value); err != nil {
			return stats, fmt.Errorf("set meta %s: %w", key, err)
		}
	}
	return stats, nil
}

// fileWork is a file that needs to be (re-)indexed.
type fileWork struct {
	candidate walker.FileCandidate
	hash      string
	lang      string
	src       []byte
}

// chunkBatch is the chunks extracted from a single file.
type chunkBatch struct {
	work   fileWork
	chunks []chunker.Chunk
}

// embeddedBatch has chunks with their embeddings ready to store.
type embeddedBatch struct {
	work       fileWork
	chunks     []chunker.Chunk
	embeddings [][]float32
}

func (idx *Indexer) runPipeline(ctx context.Context, root string, onProgress ProgressFunc) (*Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numWorkers := runtime.NumCPU()
	stats := &Stats{}
	var filesTotal, filesSkipped atomic.Int64

	var failedMu sync.Mutex
	var failedFiles []string
	addFailed := func(rel string) {
		failedMu.Lock()
		failedFiles = append(failedFiles, rel)
		failedMu.Unlock()
	}

	// First fatal error wins; later stages drain their inputs so the
	// walker can always finish.
	var fatalMu sync.Mutex
	var fatalErr error
	setFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		cancel()
	}

	// Stage 1: walk.
	fileCh, reportCh := walker.Walk(root, idx.cfg.WalkOptions())

	// Stage 2: read and hash, skipping files whose hash is unchanged.
	// After a clear no hashes survive, so the check only bites under
	// KeepIndex.
	workCh := make(chan fileWork, numWorkers)
	var hashWg sync.WaitGroup
	for range numWorkers {
		hashWg.Add(1)
		go func() {
			defer hashWg.Done()
			for cand := range fileCh {
				filesTotal.Add(1)
				if ctx.Err() != nil {
					continue
				}
				src, err := os.ReadFile(cand.Path)
				if err != nil {
					slog.Warn("skipping unreadable file", "path", cand.RelPath, "error", err)
					addFailed(cand.RelPath)
					continue
				}
				sum := sha256.Sum256(src)
				hash := hex.EncodeToString(sum[:])

				existing, err := idx.store.GetFileHash(cand.RelPath)
				if err == nil && existing == hash {
					filesSkipped.Add(1)
					continue
				}

				work := fileWork{
					candidate: cand,
					hash:      hash,
					lang:      idx.registry.LanguageName(cand.Path),
					src:       src,
				}
				select {
				case workCh <- work:
				case <-ctx.Done():
				}
			}
		}()
	}
	go func() {
		hashWg.Wait()
		close(workCh)
	}()

	// Stage 3: chunk.
	chunkCh := make(chan chunkBatch, numWorkers)
	var chunkWg sync.WaitGroup
	for range numWorkers {
		chunkWg.Add(1)
		go func() {
			defer chunkWg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					continue
				}
				chunks := idx.chunker.Split(w.candidate.RelPath, string(w.src)).All()
				if len(chunks) == 0 {
					continue
				}
				select {
				case chunkCh <- chunkBatch{work: w, chunks: chunks}:
				case <-ctx.Done():
				}
			}
		}()
	}
	go func() {
		chunkWg.Wait()
		close(chunkCh)
	}()

	// Stage 4: embed. Each file's chunks go out as bounded parallel
	// sub-batches; a failed batch aborts the load.
	embeddedCh := make(chan embeddedBatch, 4)
	var embedWg sync.WaitGroup
	embedWg.Add(1)
	go func() {
		defer embedWg.Done()
		defer close(embeddedCh)

		batchSize := idx.cfg.EmbedBatchSize
		if batchSize <= 0 {
			batchSize = 32
		}

		for batch := range chunkCh {
			if ctx.Err() != nil {
				continue
			}
			texts := make([]string, len(batch.chunks))
			for i, c := range batch.chunks {
				texts[i] = c.Content
			}

			embeddings := make([][]float32, len(texts))
			eg, egCtx := errgroup.WithContext(ctx)
			eg.SetLimit(max(idx.cfg.EmbedWorkers, 1))
			for start := 0; start < len(texts); start += batchSize {
				end := min(start+batchSize, len(texts))
				eg.Go(func() error {
					vecs, err := idx.embedder.Embed(egCtx, texts[start:end])
					if err != nil {
						return err
					}
					for i, vec := range vecs {
						embeddings[start+i] = vec
					}
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				addFailed(batch.work.candidate.RelPath)
				setFatal(fmt.Errorf("embed %s: %w", batch.work.candidate.RelPath, err))
				continue
			}

			select {
			case embeddedCh <- embeddedBatch{work: batch.work, chunks: batch.chunks, embeddings: embeddings}:
			case <-ctx.Done():
			}
		}
	}()

	// Stage 5: store, single writer.
	var storeWg sync.WaitGroup
	storeWg.Add(1)
	go func() {
		defer storeWg.Done()

		for eb := range embeddedCh {
			if ctx.Err() != nil {
				continue
			}
			fileID, err := idx.store.UpsertFile(store.FileRecord{
				Path:      eb.work.candidate.RelPath,
				Hash:      eb.work.hash,
				Language:  eb.work.lang,
				SizeBytes: eb.work.candidate.Size,
			})
			if err != nil {
				setFatal(fmt.Errorf("store file %s: %w", eb.work.candidate.RelPath, err))
				continue
			}

			storeChunks := make([]store.Chunk, len(eb.chunks))
			for i, c := range eb.chunks {
				storeChunks[i] = store.Chunk{
					Seq:       c.Seq,
					StartLine: c.StartLine,
					EndLine:   c.EndLine,
					Content:   c.Content,
					Tokens:    c.Tokens,
				}
			}
			chunkIDs, err := idx.store.InsertChunks(fileID, storeChunks)
			if err != nil {
				setFatal(fmt.Errorf("store chunks %s: %w", eb.work.candidate.RelPath, err))
				continue
			}
			if err := idx.store.InsertEmbeddings(chunkIDs, eb.embeddings); err != nil {
				setFatal(fmt.Errorf("store embeddings %s: %w", eb.work.candidate.RelPath, err))
				continue
			}

			stats.FilesIndexed++
			stats.ChunksTotal += len(eb.chunks)
			if onProgress != nil {
				onProgress(stats.FilesIndexed, int(filesTotal.Load()))
			}
		}
	}()

	embedWg.Wait()
	storeWg.Wait()
	stats.Walk = <-reportCh

	stats.FilesTotal = int(filesTotal.Load())
	stats.FilesSkipped = int(filesSkipped.Load())
	sort.Strings(failedFiles)
	stats.FailedFiles = failedFiles
	stats.FilesFailed = len(failedFiles)

	fatalMu.Lock()
	err := fatalErr
	fatalMu.Unlock()
	if err != nil {
		return stats, err
	}
	if stats.Walk.Err != nil {
		return stats, fmt.Errorf("walk: %w", stats.Walk.Err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stats, ctxErr
	}
	return stats, nil
}
