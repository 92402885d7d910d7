// Package sqlite is the embedded Persistence Gateway backend, used for
// single-process deployments and tests. It implements storage.Store on
// top of the pure-Go modernc.org/sqlite driver so the binary needs no
// cgo toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clinotect/noteengine/internal/storage"
)

// Store is the embedded sqlite-backed storage.Store implementation.
type Store struct {
	db *sql.DB
}

// Open opens or creates a sqlite database at path and applies the
// schema. Uses storage.SQLiteConnString for the standard busy-timeout
// and foreign-key pragmas.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", storage.SQLiteConnString(path, false))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid lock storms

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	s := &Store{db: db}
	return s, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ storage.Store = (*Store)(nil)

func (s *Store) conn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}

// withRetry runs op, retrying up to two additional times on a
// storage.IsRetryable error, waiting 25 ms after the first failure and
// 50 ms after the second.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = op()
		if err == nil || !storage.IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
	return err
}
