/*
errors.go - Centralized error types for the points ledger engine

PURPOSE:
  All engine error kinds in one place. The four domain errors form a closed
  set distinguishable from transient storage failures. Domain errors are
  expected outcomes surfaced verbatim to the caller; they are never retried
  because retrying does not change eligibility or balance facts.

ERROR CATEGORIES:
  1. Catalog errors   - Unknown activity or reward
  2. Eligibility      - Claim window closed or already claimed
  3. Balance          - Insufficient points for a redemption
  4. Storage          - Timeout, unavailable, constraint violation (retryable)

USAGE:
  if errors.Is(err, ledger.ErrNotEligible) { ... }

  var insufficient *ledger.InsufficientPointsError
  if errors.As(err, &insufficient) {
      fmt.Println(insufficient.Required, insufficient.Available)
  }

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownActivity is returned when an activity id is not in the catalog.
	ErrUnknownActivity = errors.New("unknown activity")

	// ErrUnknownReward is returned when a reward id is not in the catalog or
	// the reward is marked unavailable.
	ErrUnknownReward = errors.New("unknown reward")

	// ErrNotEligible is returned when a claim is not allowed now: either the
	// activity was already claimed or its recurrence window has not reopened.
	ErrNotEligible = errors.New("not eligible to claim")

	// ErrInsufficientPoints is returned when a redemption cost exceeds the
	// account's balance.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrStorage is returned when the underlying store fails (timeout,
	// unavailable, constraint violation). Unlike the domain errors above it
	// may succeed on retry.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotEligibleError explains why a claim was refused.
type NotEligibleError struct {
	AccountID  AccountID
	ActivityID ActivityID
	Reason     string    // e.g. "already claimed", "window not yet reopened"
	RetryAt    time.Time // zero when the claim is permanently exhausted
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("activity %s not eligible for account %d: %s",
		e.ActivityID, e.AccountID, e.Reason)
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

// InsufficientPointsError reports a balance shortage on redemption.
type InsufficientPointsError struct {
	AccountID AccountID
	RewardID  RewardID
	Required  int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points for reward %s: required %d, available %d",
		e.RewardID, e.Required, e.Available)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// StorageError wraps a store-level failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match without losing the wrapped cause.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err unless it is already a StorageError or a domain
// error, which pass through untouched.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || IsClientError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is one of the four domain errors,
// i.e. caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownActivity) ||
		errors.Is(err, ErrUnknownReward) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrInsufficientPoints)
}

// IsNotFound reports whether the error indicates a missing catalog entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownActivity) || errors.Is(err, ErrUnknownReward)
}

// IsRetryable reports whether the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
