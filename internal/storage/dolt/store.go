// Package dolt implements the persistence gateway against a
// running Dolt sql-server, reached over the MySQL wire protocol via
// github.com/go-sql-driver/mysql. Dolt servers are MySQL-compatible, so
// no embedded/CGO driver is needed: every write this backend issues is
// visible to `dolt log`/`dolt diff` against the underlying database the
// same way a plain MySQL client's writes would be.
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"

	"github.com/clinotect/noteengine/internal/storage"
)

// Config holds the connection parameters for a Dolt sql-server.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      bool
}

// dsn builds a go-sql-driver/mysql data source name from c.
func (c Config) dsn() string {
	params := "parseTime=true&multiStatements=true"
	if c.TLS {
		params += "&tls=true"
	}
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 3307
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.User, c.Password, host, port, c.Database, params)
}

// Store is the server-mode Dolt-backed storage.Store implementation.
type Store struct {
	db *sql.DB
}

// Open connects to a Dolt sql-server and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("dolt: open: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dolt: ping: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("dolt: apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ storage.Store = (*Store)(nil)

const serverRetryMaxElapsed = 30 * time.Second

func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	return bo
}

// isRetryableError reports whether err is a transient server-mode
// connection error worth retrying, mirroring the substring taxonomy a
// MySQL-wire-protocol client sees against a Dolt sql-server under load
// (stale pool connections, brief restarts, catalog races right after
// CREATE DATABASE).
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "driver: bad connection"),
		strings.Contains(s, "invalid connection"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "database is read only"),
		strings.Contains(s, "lost connection"),
		strings.Contains(s, "gone away"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "unknown database"):
		return true
	}
	return false
}

// withRetry runs op, retrying transient connection errors with
// exponential backoff for up to serverRetryMaxElapsed. Non-retryable
// errors stop the retry loop immediately via backoff.Permanent.
func withRetry(ctx context.Context, op func() error) error {
	bo := newRetryBackoff()
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isRetryableError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

func (s *Store) conn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}
