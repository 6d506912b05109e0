/*
errors.go - Centralized error types for the automation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The automation core itself never returns errors on its steady-state
  path: missing buffers, direction Off, zero eligible amounts and
  unsupported entities are silent no-ops. Errors exist for the layers
  around it: persistence, record parsing and the API.

ERROR CATEGORIES:
  1. Lookup errors - Unknown container, upgrade or entity
  2. Record errors - Malformed or unknown upgrade records
  3. Store errors - Idempotency and persistence failures

SEE ALSO:
  - store.go: Uses these errors
  - factory/upgrade.go: Wraps record errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transfer with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrContainerNotFound is returned when a referenced container doesn't exist.
	ErrContainerNotFound = errors.New("container not found")

	// ErrUpgradeNotFound is returned when a referenced upgrade doesn't exist.
	ErrUpgradeNotFound = errors.New("upgrade not found")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrUnknownUpgradeKind is returned when no builder is registered for a kind.
	ErrUnknownUpgradeKind = errors.New("unknown upgrade kind")

	// ErrInvalidRecord is returned when an upgrade record fails validation.
	ErrInvalidRecord = errors.New("invalid upgrade record")

	// ErrInvalidDirection is returned when parsing an unknown direction name.
	ErrInvalidDirection = errors.New("invalid direction")

	// ErrUnsupportedAction is returned when an upgrade does not offer a manual action.
	ErrUnsupportedAction = errors.New("unsupported action")

	// ErrNotAnActor is returned when a manual action targets an entity that
	// holds no resource pool.
	ErrNotAnActor = errors.New("entity is not an actor")

	// ErrUpgradeExists is returned when an upgrade ID is already installed
	// in another container.
	ErrUpgradeExists = errors.New("upgrade already installed elsewhere")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RecordError points at the field of an upgrade record that failed.
type RecordError struct {
	UpgradeID UpgradeID
	Field     string
	Reason    string
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("upgrade %s: %s", e.UpgradeID, e.Reason)
	}
	return fmt.Sprintf("upgrade %s: field %s: %s", e.UpgradeID, e.Field, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrInvalidRecord
}

// PersistError wraps a failed save of a record that was already updated in memory.
type PersistError struct {
	UpgradeID UpgradeID
	Key       string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist upgrade %s (%s): %v", e.UpgradeID, e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrUnknownUpgradeKind) ||
		errors.Is(err, ErrUnsupportedAction) ||
		errors.Is(err, ErrNotAnActor)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContainerNotFound) ||
		errors.Is(err, ErrUpgradeNotFound) ||
		errors.Is(err, ErrEntityNotFound)
}

// IsConflict returns true if the write collided with an existing one.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrUpgradeExists)
}
