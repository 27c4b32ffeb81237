//go:build sqlite_vec

package store

// Compiled with CGO and the sqlite_vec tag: vector distances are computed
// in SQL by the sqlite-vec extension.
//
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether vec_distance_cosine is
	// usable in SQL.
	VectorExtensionAvailable = true
)
