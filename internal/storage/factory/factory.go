// Package factory selects and constructs the configured persistence
// backend: embedded sqlite for single-process
// deployments or a server-mode Dolt/MySQL backend for shared/HA
// deployments.
package factory

import (
	"context"
	"fmt"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/storage/dolt"
	"github.com/clinotect/noteengine/internal/storage/sqlite"
)

// Backend names recognized by New.
const (
	BackendSQLite = "sqlite"
	BackendDolt   = "dolt"
)

// Options configures how the chosen backend is opened.
type Options struct {
	// SQLitePath is the database file path, used when Backend is sqlite
	// (the default when Backend is empty).
	SQLitePath string

	// Dolt server mode connection parameters, used when Backend is dolt.
	DoltHost     string
	DoltPort     int
	DoltUser     string
	DoltPassword string
	DoltDatabase string
	DoltTLS      bool
}

// New opens the storage backend named by backend ("sqlite", "dolt", or
// "" for the sqlite default).
func New(ctx context.Context, backend string, opts Options) (storage.Store, error) {
	switch backend {
	case BackendSQLite, "":
		path := opts.SQLitePath
		if path == "" {
			path = "clinotect.db"
		}
		return sqlite.Open(path)
	case BackendDolt:
		return dolt.Open(ctx, dolt.Config{
			Host:     opts.DoltHost,
			Port:     opts.DoltPort,
			User:     opts.DoltUser,
			Password: opts.DoltPassword,
			Database: opts.DoltDatabase,
			TLS:      opts.DoltTLS,
		})
	default:
		return nil, fmt.Errorf("factory: unknown storage backend %q (supported: sqlite, dolt)", backend)
	}
}
