/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine (Store,
  UpgradeStore, BufferStore) using SQLite.

INTERFACES IMPLEMENTED:
  generic.Store:        Transfer ledger
  generic.UpgradeStore: Upgrade records (named settings fields)
  generic.BufferStore:  Last known buffer state per container and tag

APPEND-ONLY ENFORCEMENT:
  The Store enforces append-only semantics:
  - No UPDATE statements on transfers table
  - No DELETE statements on transfers table (Reset aside)

KEY TABLES:
  transfers: Immutable ledger of every movement
  upgrades:  One row per installed upgrade, settings as JSON
  buffers:   One row per (container, tag)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The tick driver writes a batch per
  tick while API handlers read.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/upgrades.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/upgrade-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.FullStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Transfers (append-only ledger)
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		container_id TEXT NOT NULL,
		upgrade_id TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		resource_type TEXT,
		direction TEXT NOT NULL,
		points INTEGER NOT NULL,
		units INTEGER NOT NULL,
		manual INTEGER NOT NULL DEFAULT 0,
		tick INTEGER NOT NULL,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Hot path: per-container history in tick order
	CREATE INDEX IF NOT EXISTS idx_transfers_container_tick
		ON transfers(container_id, tick);
	CREATE INDEX IF NOT EXISTS idx_transfers_entity
		ON transfers(entity_id);

	-- Upgrade records
	CREATE TABLE IF NOT EXISTS upgrades (
		id TEXT PRIMARY KEY,
		container_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		settings_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_upgrades_container
		ON upgrades(container_id);

	-- Buffer states
	CREATE TABLE IF NOT EXISTS buffers (
		container_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		resource_id TEXT,
		stored INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (container_id, tag)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSFER STORE (generic.Store interface)
// =============================================================================

const transferColumns = `id, container_id, upgrade_id, entity_id, resource_type, direction,
		points, units, manual, tick, idempotency_key, created_at`

// Append adds a transfer to the ledger.
func (s *Store) Append(ctx context.Context, t generic.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendTransfer(ctx, s.db, t)
}

func (s *Store) appendTransfer(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, t generic.Transfer) error {
	var resourceID string
	if t.ResourceType != nil {
		resourceID = t.ResourceType.ResourceID()
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO transfers (` + transferColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		t.ID,
		t.ContainerID,
		t.UpgradeID,
		t.EntityID,
		nullString(resourceID),
		t.Direction,
		t.Points,
		t.Units,
		t.Manual,
		int64(t.Tick),
		nullString(t.IdempotencyKey),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transfer: %w", err)
	}
	return nil
}

// AppendBatch adds multiple transfers atomically.
func (s *Store) AppendBatch(ctx context.Context, ts []generic.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[string]bool)
	for _, t := range ts {
		if t.IdempotencyKey != "" {
			if keys[t.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[t.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, t := range ts {
		if err := s.appendTransfer(ctx, sqlTx, t); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Load returns all transfers for a container in tick order.
func (s *Store) Load(ctx context.Context, containerID generic.ContainerID) ([]generic.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transferColumns + `
		FROM transfers
		WHERE container_id = ?
		ORDER BY tick ASC, created_at ASC, rowid ASC`

	return s.queryTransfers(ctx, query, containerID)
}

// LoadRange returns transfers with tick in [from, to].
func (s *Store) LoadRange(ctx context.Context, containerID generic.ContainerID, from, to generic.Tick) ([]generic.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transferColumns + `
		FROM transfers
		WHERE container_id = ? AND tick >= ? AND tick <= ?
		ORDER BY tick ASC, created_at ASC, rowid ASC`

	return s.queryTransfers(ctx, query, containerID, int64(from), int64(to))
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transfers WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// RecentTransfers returns the newest transfers across all containers.
func (s *Store) RecentTransfers(ctx context.Context, limit int) ([]generic.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transferColumns + `
		FROM transfers
		ORDER BY tick DESC, rowid DESC
		LIMIT ?`

	return s.queryTransfers(ctx, query, limit)
}

func (s *Store) queryTransfers(ctx context.Context, query string, args ...any) ([]generic.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []generic.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

func scanTransfer(rows *sql.Rows) (generic.Transfer, error) {
	var (
		t              generic.Transfer
		resourceID     sql.NullString
		direction      string
		tick           int64
		idempotencyKey sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&t.ID, &t.ContainerID, &t.UpgradeID, &t.EntityID, &resourceID, &direction,
		&t.Points, &t.Units, &t.Manual, &tick, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan transfer: %w", err)
	}

	t.ResourceType = generic.GetOrCreateResource(resourceID.String)
	t.Direction = generic.Direction(direction)
	t.Tick = generic.Tick(tick)
	t.IdempotencyKey = idempotencyKey.String
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return t, nil
}

// =============================================================================
// UPGRADE STORE (generic.UpgradeStore interface)
// =============================================================================

// SaveUpgrade inserts or replaces an upgrade record.
func (s *Store) SaveUpgrade(ctx context.Context, rec generic.UpgradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode settings of %s: %w", rec.ID, err)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT OR REPLACE INTO upgrades (id, container_id, kind, settings_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.ContainerID, rec.Kind, string(settings), updatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save upgrade %s: %w", rec.ID, err)
	}
	return nil
}

// GetUpgrade returns nil, nil when the record does not exist.
func (s *Store) GetUpgrade(ctx context.Context, id generic.UpgradeID) (*generic.UpgradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryUpgrades(ctx,
		"SELECT id, container_id, kind, settings_json, updated_at FROM upgrades WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (s *Store) ListUpgrades(ctx context.Context, containerID generic.ContainerID) ([]generic.UpgradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUpgrades(ctx,
		"SELECT id, container_id, kind, settings_json, updated_at FROM upgrades WHERE container_id = ? ORDER BY id",
		containerID)
}

func (s *Store) DeleteUpgrade(ctx context.Context, id generic.UpgradeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM upgrades WHERE id = ?", id)
	return err
}

func (s *Store) queryUpgrades(ctx context.Context, query string, args ...any) ([]generic.UpgradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query upgrades: %w", err)
	}
	defer rows.Close()

	var out []generic.UpgradeRecord
	for rows.Next() {
		var (
			rec       generic.UpgradeRecord
			settings  string
			updatedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.ContainerID, &rec.Kind, &settings, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upgrade: %w", err)
		}
		if err := json.Unmarshal([]byte(settings), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode settings of %s: %w", rec.ID, err)
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// BUFFER STORE (generic.BufferStore interface)
// =============================================================================

func (s *Store) SaveBuffer(ctx context.Context, containerID generic.ContainerID, tag string, state generic.BufferState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR REPLACE INTO buffers (container_id, tag, resource_id, stored, capacity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		containerID, tag, nullString(state.ResourceID), state.Stored, state.Capacity,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save buffer %s/%s: %w", containerID, tag, err)
	}
	return nil
}

func (s *Store) LoadBuffers(ctx context.Context, containerID generic.ContainerID) (map[string]generic.BufferState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tag, resource_id, stored, capacity FROM buffers WHERE container_id = ?", containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query buffers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]generic.BufferState)
	for rows.Next() {
		var (
			tag        string
			resourceID sql.NullString
			st         generic.BufferState
		)
		if err := rows.Scan(&tag, &resourceID, &st.Stored, &st.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan buffer: %w", err)
		}
		st.ResourceID = resourceID.String
		out[tag] = st
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenario loads).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transfers", "upgrades", "buffers"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
