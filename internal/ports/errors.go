package ports

import (
	"errors"
	"fmt"
)

// Sentinel errors the store and facade propagate to callers. Matched with
// errors.Is, in the same minimal style as the sentinel errors the protocol
// adapters define for their own connection-state failures.
var (
	// ErrNotFound is returned when an event_id is unknown to the store.
	ErrNotFound = errors.New("event not found")

	// ErrInvalidSnapshot is returned when a MailSnapshot is missing its
	// conversation id and therefore cannot be routed.
	ErrInvalidSnapshot = errors.New("mail snapshot missing conversation id")

	// ErrCorrupt is returned when the on-disk store document cannot be
	// parsed.
	ErrCorrupt = errors.New("event store document is corrupt")

	// ErrConflictResolutionRequired is surfaced only to a host UI during
	// backup import; the engine itself never raises or inspects it.
	ErrConflictResolutionRequired = errors.New("conflict resolution required")
)

// AdapterFailureKind classifies why a mail-source call failed, so the
// facade can decide between a deferred retry and a not-found mark.
type AdapterFailureKind string

const (
	AdapterFailureSessionUnavailable AdapterFailureKind = "session_unavailable"
	AdapterFailureTransient          AdapterFailureKind = "transient"
	AdapterFailurePermanentMissing   AdapterFailureKind = "permanent_missing"
	AdapterFailureOther              AdapterFailureKind = "other"
)

// AdapterError wraps a mail-source failure with its classification.
// Nothing in this module constructs or inspects one: the reference IMAP
// adapter returns plain errors, and the catch-up engine schedules a
// deferred retry for every failed upsert whatever the cause.
type AdapterError struct {
	Kind AdapterFailureKind
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter failed (%s): %v", e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// IsRetryable reports whether the facade should feed the failure into the
// deferred-retry queue rather than mark the target as not-found.
func (e *AdapterError) IsRetryable() bool {
	return e.Kind == AdapterFailureSessionUnavailable || e.Kind == AdapterFailureTransient
}
