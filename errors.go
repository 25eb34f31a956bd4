package scorebook

import (
	"errors"
	"fmt"
)

// Common errors returned by the scorebook engine.
var (
	// ErrNotFound is returned when a record or metadata entry is not found.
	ErrNotFound = errors.New("record not found")

	// ErrJobNotFound is returned when a job ID does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateActiveJob is returned when starting a job would violate
	// the unique-active-job policy for its type and environment.
	ErrDuplicateActiveJob = errors.New("an active job already exists for this type and environment")

	// ErrAlreadyTerminal is returned when finishing a job that already
	// reached a terminal status.
	ErrAlreadyTerminal = errors.New("job already in terminal status")

	// ErrUnknownEntity is returned when no schema is registered for an entity.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrSyncInFlight is returned when a sync for the same scope is already running.
	ErrSyncInFlight = errors.New("sync already in flight for scope")
)

// InvalidRecordError is returned when a raw record fails schema coercion,
// e.g. a required tracked field is missing and has no default.
// Extractable via errors.As().
type InvalidRecordError struct {
	Entity string
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid %s record: field %q: %s", e.Entity, e.Field, e.Reason)
}

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// StoreError wraps a transient store failure. Callers may retry the
// record that produced it; Retryable distinguishes lock contention from
// hard failures. Supports Unwrap().
type StoreError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SyncError is returned when a sync run fails with details.
// Extractable via errors.As(). Supports Unwrap().
type SyncError struct {
	Scope  string
	Failed int
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync: scope %s: %d record(s) failed: %v", e.Scope, e.Failed, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
