// Package store persists one repository index per SQLite database: file
// records, their chunks, and chunk embeddings. Vector search runs in SQL
// when the sqlite-vec extension is compiled in, otherwise in Go.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoIndex means no index database exists for the repository.
var ErrNoIndex = errors.New("no index found")

// Store provides persistence for indexed files, chunks, and embeddings.
type Store interface {
	// GetFileHash returns the stored hash for a path, or "" if not indexed.
	GetFileHash(path string) (string, error)
	// UpsertFile inserts or updates a file record and returns its ID.
	// Updating deletes the file's existing chunks and embeddings.
	UpsertFile(f FileRecord) (int64, error)
	// InsertChunks inserts chunks for a file and returns their IDs.
	InsertChunks(fileID int64, chunks []Chunk) ([]int64, error)
	// InsertEmbeddings stores embeddings keyed by chunk ID.
	InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error
	// Search finds the chunks closest to the query vector, best first.
	Search(queryVector []float32, limit int) ([]SearchResult, error)
	// CountFiles returns the number of indexed files.
	CountFiles() (int64, error)
	// CountChunks returns the number of stored chunks.
	CountChunks() (int64, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Clear removes all files, chunks, and embeddings.
	Clear() error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the index database at the given path and
// initializes the schema. The parent directory is created if needed.
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs run as statements so both drivers accept them.
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	db.SetMaxOpenConns(1)
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenExisting opens the index database at path, or returns ErrNoIndex
// when none has been created yet.
func OpenExisting(dbPath string) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoIndex
	}
	return Open(dbPath)
}

func (s *SQLiteStore) GetFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) UpsertFile(f FileRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&existingID)
	if err == nil {
		// Chunk deletion cascades to embeddings.
		if _, err := tx.Exec("DELETE FROM chunks WHERE file_id = ?", existingID); err != nil {
			return 0, err
		}
		_, err = tx.Exec(
			"UPDATE files SET hash = ?, language = ?, size_bytes = ?, indexed_at = CURRENT_TIMESTAMP WHERE id = ?",
			f.Hash, f.Language, f.SizeBytes, existingID,
		)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := tx.Exec(
		"INSERT INTO files (path, hash, language, size_bytes) VALUES (?, ?, ?, ?)",
		f.Path, f.Hash, f.Language, f.SizeBytes,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) InsertChunks(fileID int64, chunks []Chunk) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO chunks (file_id, seq, start_line, end_line, content, tokens) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		res, err := stmt.Exec(fileID, c.Seq, c.StartLine, c.EndLine, c.Content, c.Tokens)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("mismatched chunk IDs (%d) and embeddings (%d)", len(chunkIDs), len(embeddings))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO embeddings (chunk_id, vector) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, cid := range chunkIDs {
		if _, err := stmt.Exec(cid, serializeVector(embeddings[i])); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", cid, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Search(queryVector []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	if VectorExtensionAvailable {
		return s.searchSQL(queryVector, limit)
	}
	return s.searchFallback(queryVector, limit)
}

// searchSQL computes distances in the database via sqlite-vec. The
// extension returns distance, converted here to similarity.
func (s *SQLiteStore) searchSQL(queryVector []float32, limit int) ([]SearchResult, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.file_id, c.seq, c.start_line, c.end_line, c.content, c.tokens,
		       f.path, f.language,
		       1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM chunks c
		JOIN embeddings e ON e.chunk_id = c.id
		JOIN files f ON f.id = c.file_id
		ORDER BY similarity DESC, f.path ASC, c.start_line ASC
		LIMIT ?
	`, serializeVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.FileID, &r.Chunk.Seq,
			&r.Chunk.StartLine, &r.Chunk.EndLine, &r.Chunk.Content, &r.Chunk.Tokens,
			&r.Path, &r.Language, &r.Similarity,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchFallback scans every embedding and scores it in Go.
func (s *SQLiteStore) searchFallback(queryVector []float32, limit int) ([]SearchResult, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.file_id, c.seq, c.start_line, c.end_line, c.content, c.tokens,
		       f.path, f.language, e.vector
		FROM chunks c
		JOIN embeddings e ON e.chunk_id = c.id
		JOIN files f ON f.id = c.file_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var blob []byte
		err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.FileID, &r.Chunk.Seq,
			&r.Chunk.StartLine, &r.Chunk.EndLine, &r.Chunk.Content, &r.Chunk.Tokens,
			&r.Path, &r.Language, &blob,
		)
		if err != nil {
			return nil, err
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}
		r.Similarity = cosineSimilarity(queryVector, vector)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return results[i].Chunk.StartLine < results[j].Chunk.StartLine
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SQLiteStore) CountFiles() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n)
	return n, err
}

func (s *SQLiteStore) CountChunks() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"embeddings", "chunks", "files", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
