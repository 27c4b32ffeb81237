//go:build !sqlite_vec

package store

// Default build: pure Go SQLite with similarity computed in Go. No C
// compiler needed; slower on large indexes.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether vec_distance_cosine is
	// usable in SQL.
	VectorExtensionAvailable = false
)
