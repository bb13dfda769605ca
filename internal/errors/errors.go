// Package errors provides centralized error definitions and error handling
// utilities for the weft codebase. It defines the lifecycle error taxonomy,
// error constructors with context wrapping, and classification helpers.
//
// # Error Taxonomy
//
// Sentinel errors cover allocation and registry conditions:
//   - ErrPoolExhausted: every slot in [1, MaxThreads] is occupied
//   - ErrPortUnavailable: a derived port is bound by an unrelated process
//   - ErrLockTimeout: the registry gate could not be acquired in time
//   - ErrCorruptRegistry: the registry file has an unrecognized schema
//   - ErrNotFound: no live record for the requested thread id
//   - ErrBranchInUse: the branch name is held by another live record
//
// Typed errors carry extra context:
//   - ConfigError: missing or invalid external configuration (fatal, no retry)
//   - ProvisioningError: a provisioning step failed and rollback completed
//   - TeardownWarning: a non-fatal per-step teardown failure
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrPoolExhausted) { ... }
//
//	var perr *errors.ProvisioningError
//	if errors.As(err, &perr) { log.Warn("failed at", perr.Step) }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Allocation-related sentinel errors
var (
	// ErrPoolExhausted indicates that every thread slot is occupied.
	ErrPoolExhausted = New("thread pool exhausted")
	// ErrPortUnavailable indicates that a derived port is already bound
	// by a process outside the registry.
	ErrPortUnavailable = New("derived port unavailable")
	// ErrBranchInUse indicates that the branch name belongs to a live record.
	ErrBranchInUse = New("branch already in use by a live thread")
)

// Registry-related sentinel errors
var (
	// ErrLockTimeout indicates the registry gate was not acquired in time.
	ErrLockTimeout = New("timed out acquiring registry lock")
	// ErrCorruptRegistry indicates an unrecognized registry schema.
	ErrCorruptRegistry = New("corrupt registry: unrecognized record format")
	// ErrNotFound indicates that no live record exists for the id.
	ErrNotFound = New("thread not found")
)

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// ConfigError represents missing or invalid external configuration.
// Configuration errors are fatal: retrying without operator intervention
// cannot succeed.
type ConfigError struct {
	Field   string // config field path, e.g. "pool.max_threads"
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %s", e.Message)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// ProvisioningError represents a provisioning step failure. By the time a
// ProvisioningError surfaces, all completed steps have been rolled back and
// the thread id has been released.
type ProvisioningError struct {
	Step string // name of the step that failed
	Err  error
}

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at step %q: %v (all completed steps rolled back)", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// NewProvisioningError wraps a step failure.
func NewProvisioningError(step string, err error) *ProvisioningError {
	return &ProvisioningError{Step: step, Err: err}
}

// TeardownWarning represents a non-fatal teardown step failure. Teardown
// accumulates warnings and continues; it never aborts on one.
type TeardownWarning struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *TeardownWarning) Error() string {
	return fmt.Sprintf("teardown step %q: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *TeardownWarning) Unwrap() error {
	return e.Err
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether the error is transient: the same call may
// succeed later without operator intervention. Lock contention clears when
// the holder releases; slots and ports free up as threads are torn down.
func IsRetryable(err error) bool {
	return Is(err, ErrLockTimeout) || Is(err, ErrPoolExhausted) || Is(err, ErrPortUnavailable)
}

// IsFatal reports whether the error requires operator intervention.
func IsFatal(err error) bool {
	if Is(err, ErrCorruptRegistry) {
		return true
	}
	var cerr *ConfigError
	return As(err, &cerr)
}
