// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/upgrade-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	transfers   map[generic.ContainerID][]generic.Transfer
	idempotency map[string]bool
	upgrades    map[generic.UpgradeID]generic.UpgradeRecord
	buffers     map[generic.ContainerID]map[string]generic.BufferState
}

var _ generic.FullStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		transfers:   make(map[generic.ContainerID][]generic.Transfer),
		idempotency: make(map[string]bool),
		upgrades:    make(map[generic.UpgradeID]generic.UpgradeRecord),
		buffers:     make(map[generic.ContainerID]map[string]generic.BufferState),
	}
}

// Append adds a single transfer. Append-only.
func (m *Memory) Append(_ context.Context, t generic.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.IdempotencyKey != "" && m.idempotency[t.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(t)
	return nil
}

// AppendBatch adds multiple transfers atomically.
func (m *Memory) AppendBatch(_ context.Context, ts []generic.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(ts))
	for _, t := range ts {
		if t.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[t.IdempotencyKey] || seen[t.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[t.IdempotencyKey] = true
	}

	for _, t := range ts {
		m.appendLocked(t)
	}
	return nil
}

func (m *Memory) appendLocked(t generic.Transfer) {
	ts := m.transfers[t.ContainerID]

	// Keep tick order; equal ticks keep insertion order.
	i := sort.Search(len(ts), func(i int) bool {
		return ts[i].Tick > t.Tick
	})
	ts = append(ts, generic.Transfer{})
	copy(ts[i+1:], ts[i:])
	ts[i] = t
	m.transfers[t.ContainerID] = ts

	if t.IdempotencyKey != "" {
		m.idempotency[t.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, containerID generic.ContainerID) ([]generic.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Transfer, len(m.transfers[containerID]))
	copy(result, m.transfers[containerID])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, containerID generic.ContainerID, from, to generic.Tick) ([]generic.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transfer
	for _, t := range m.transfers[containerID] {
		if from <= t.Tick && t.Tick <= to {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// UPGRADE RECORDS
// =============================================================================

func (m *Memory) SaveUpgrade(_ context.Context, rec generic.UpgradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	rec.Fields = copyFields(rec.Fields)
	m.upgrades[rec.ID] = rec
	return nil
}

func (m *Memory) GetUpgrade(_ context.Context, id generic.UpgradeID) (*generic.UpgradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.upgrades[id]
	if !ok {
		return nil, nil
	}
	rec.Fields = copyFields(rec.Fields)
	return &rec, nil
}

func (m *Memory) ListUpgrades(_ context.Context, containerID generic.ContainerID) ([]generic.UpgradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.UpgradeRecord
	for _, rec := range m.upgrades {
		if rec.ContainerID == containerID {
			rec.Fields = copyFields(rec.Fields)
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteUpgrade(_ context.Context, id generic.UpgradeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.upgrades, id)
	return nil
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// =============================================================================
// BUFFERS
// =============================================================================

func (m *Memory) SaveBuffer(_ context.Context, containerID generic.ContainerID, tag string, state generic.BufferState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buffers[containerID] == nil {
		m.buffers[containerID] = make(map[string]generic.BufferState)
	}
	m.buffers[containerID][tag] = state
	return nil
}

func (m *Memory) LoadBuffers(_ context.Context, containerID generic.ContainerID) (map[string]generic.BufferState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]generic.BufferState, len(m.buffers[containerID]))
	for tag, s := range m.buffers[containerID] {
		out[tag] = s
	}
	return out, nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = make(map[generic.ContainerID][]generic.Transfer)
	m.idempotency = make(map[string]bool)
	m.upgrades = make(map[generic.UpgradeID]generic.UpgradeRecord)
	m.buffers = make(map[generic.ContainerID]map[string]generic.BufferState)
	return nil
}
