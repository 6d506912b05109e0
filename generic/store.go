/*
store.go - Persistence interfaces for transfers, upgrade records and buffers

PURPOSE:
  Defines the interface between the automation core and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:         Append-only transfer persistence (append, load, exists)
  UpgradeStore:  Named-field upgrade records, written on every setter
  BufferStore:   Last known buffer state per container and tag

APPEND-ONLY CONTRACT:
  The transfer Store has no Update or Delete. A transfer records something
  that already happened to an actor and a buffer; it cannot be undone by
  editing the row.

IDEMPOTENCY:
  Every transfer carries an idempotency key. The tick driver derives it
  from container, upgrade, entity and tick, so a retried flush of the same
  tick is rejected instead of double-counted.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - record.go: Save handlers call UpgradeStore.SaveUpgrade
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for transfer persistence (append-only)
// =============================================================================

type Store interface {
	// Append persists a transfer. Returns error if idempotency key exists.
	Append(ctx context.Context, t Transfer) error

	// AppendBatch persists multiple transfers atomically.
	AppendBatch(ctx context.Context, ts []Transfer) error

	// Load returns all transfers for a container, ordered by tick.
	Load(ctx context.Context, containerID ContainerID) ([]Transfer, error)

	// LoadRange returns transfers with tick in [from, to].
	LoadRange(ctx context.Context, containerID ContainerID, from, to Tick) ([]Transfer, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// UPGRADE STORE - Persisted upgrade records
// =============================================================================

type UpgradeRecord struct {
	ID          UpgradeID
	ContainerID ContainerID
	Kind        UpgradeKind
	Fields      map[string]any
	UpdatedAt   time.Time
}

type UpgradeStore interface {
	// SaveUpgrade inserts or replaces the record.
	SaveUpgrade(ctx context.Context, rec UpgradeRecord) error

	// GetUpgrade returns nil, nil when the record does not exist.
	GetUpgrade(ctx context.Context, id UpgradeID) (*UpgradeRecord, error)

	ListUpgrades(ctx context.Context, containerID ContainerID) ([]UpgradeRecord, error)

	DeleteUpgrade(ctx context.Context, id UpgradeID) error
}

// =============================================================================
// BUFFER STORE - Last known buffer state
// =============================================================================

type BufferStore interface {
	SaveBuffer(ctx context.Context, containerID ContainerID, tag string, state BufferState) error
	LoadBuffers(ctx context.Context, containerID ContainerID) (map[string]BufferState, error)
}

// FullStore is everything the server persists.
type FullStore interface {
	Store
	UpgradeStore
	BufferStore
}
