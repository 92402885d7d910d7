package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying every failure the pipeline recovers from.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a malformed input row (empty patient_id,
	// unparseable date, etc). Recovered locally by skipping the row.
	ErrValidation = errors.New("validation failed")

	// ErrConflictSkipped indicates a row collided with an existing row
	// on a uniqueness constraint. Not a failure; counted as skipped.
	ErrConflictSkipped = errors.New("conflict: row skipped")

	// ErrTransientStore indicates a connectivity or lock-timeout error
	// against the persistent store. Retried at the batch level, then
	// escalated to the caller for attempt-level retry.
	ErrTransientStore = errors.New("transient store error")

	// ErrBatchFatal indicates a structural problem with an entire batch
	// (e.g. a malformed parameter array) that should trigger the
	// per-row fallback path rather than a retry.
	ErrBatchFatal = errors.New("batch fatal error")

	// ErrDictionaryUnavailable indicates neither the store nor the seed
	// file could supply a dictionary. Fatal to the extraction job; not
	// retried.
	ErrDictionaryUnavailable = errors.New("dictionary unavailable")
)

// WrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to ErrNotFound for consistent error handling. Shared by
// every storage.Store implementation.
func WrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable reports whether err represents a transient condition that
// is worth retrying at the batch or attempt level. It recognizes the
// common transient substrings
// produced by the sqlite and MySQL/Dolt drivers.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientStore) {
		return true
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "database is locked"),
		strings.Contains(s, "driver: bad connection"),
		strings.Contains(s, "invalid connection"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "read-only"),
		strings.Contains(s, "lost connection"),
		strings.Contains(s, "gone away"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "unknown database"):
		return true
	}
	return false
}

// IsConflict reports whether err is or wraps ErrConflictSkipped.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflictSkipped)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDictionaryUnavailable reports whether err is or wraps
// ErrDictionaryUnavailable (fatal to the extraction job, never
// retried).
func IsDictionaryUnavailable(err error) bool {
	return errors.Is(err, ErrDictionaryUnavailable)
}

// BypassesPercentageMonotonicity reports whether state is one of the
// transitions allowed to lower a ProcessStatus row's persisted
// percentage: queued (a fresh run starting over), reset or ready
// (recovery's reset_status writes ready), or failed (abandoning the
// in-flight run).
func BypassesPercentageMonotonicity(state string) bool {
	switch state {
	case "queued", "reset", "ready", "failed":
		return true
	default:
		return false
	}
}
