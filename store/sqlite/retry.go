// retry.go provides automatic retry logic for transient SQLite errors.
//
// Under concurrent request load, WAL-mode SQLite can produce transient
// errors like SQLITE_BUSY and SQLITE_LOCKED. The busy_timeout pragma handles
// most cases at the connection level; the rest are retried here with
// exponential backoff and jitter before surfacing as a storage failure.
package sqlite

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// retryConfig controls retry behavior for transient SQLite errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig is used for all store write operations.
var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// isTransientErr returns true if the error is a transient SQLite error that
// can be resolved by retrying: SQLITE_BUSY (another connection holds a lock)
// or SQLITE_LOCKED (table-level lock conflict).
func isTransientErr(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
	}
	// Text-level fallback for errors wrapped beyond recognition.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// retryWrite executes fn with exponential backoff + jitter for transient
// errors. If fn succeeds or returns a non-transient error, it returns
// immediately.
func retryWrite(fn func() error) error {
	cfg := defaultRetryConfig
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientErr(lastErr) {
			return lastErr
		}
		if attempt < cfg.maxRetries {
			time.Sleep(backoffDelay(cfg, attempt))
		}
	}
	return lastErr
}

// backoffDelay computes the delay for a given retry attempt using exponential
// backoff with jitter: delay = baseDelay * 2^attempt + random([0, baseDelay)).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(cfg.baseDelay)))
	return delay + jitter
}
