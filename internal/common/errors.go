// Package common defines shared sentinel errors used across the sync core.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrTransientNetwork marks a remote call that failed because the
	// remote was unreachable or timed out. The owning item stays queued or
	// pending and is retried on the next trigger.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrRemoteConflict marks an expected remote item that was not found
	// (e.g. the site row is missing). Surfaced to the caller, not retried
	// automatically.
	ErrRemoteConflict = errors.New("remote conflict")

	// ErrCorruptLocalRecord marks an artifact with neither payload nor a
	// recoverable thumbnail. It is excluded from the current batch and left
	// pending for manual inspection.
	ErrCorruptLocalRecord = errors.New("corrupt local record")

	// ErrStorageExhausted marks a failed durable write, e.g. device storage
	// full. The captured artifact is rejected immediately.
	ErrStorageExhausted = errors.New("local storage exhausted")
)
