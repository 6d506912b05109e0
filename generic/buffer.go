/*
buffer.go - Capacity-bounded typed buffer (the "tank")

PURPOSE:
  A TransferBuffer holds a single resource up to a fixed capacity. Upgrades
  fill it from actors or the world and drain it back. The buffer is owned by
  its container; upgrades only ever see it through a Capability resolved for
  the current tick.

INVARIANTS:
  1. 0 <= stored <= capacity, before and after every Fill/Drain
  2. Fill/Drain never move more than requested, and never a negative amount
  3. Once stored > 0 the resource is fixed; a mismatched Fill or Drain moves 0
  4. Draining to 0 clears the resource so any type may be filled next

RATE CAP:
  Automatic transfers pass the configured per-call cap. Manual transfers
  pass Unlimited.

SEE ALSO:
  - capability.go: Optional handle passed to upgrades
  - transfer.go: Exchange calls Fill/Drain
*/
package generic

import "github.com/shopspring/decimal"

// =============================================================================
// RATE CAP
// =============================================================================

// RateCap bounds a single Fill or Drain call. Negative values mean unlimited.
type RateCap int64

const Unlimited RateCap = -1

// CapAt returns a cap of n units. n is clamped at zero.
func CapAt(n int64) RateCap {
	if n < 0 {
		return 0
	}
	return RateCap(n)
}

func (c RateCap) IsUnlimited() bool { return c < 0 }

func (c RateCap) clamp(n int64) int64 {
	if c.IsUnlimited() || n <= int64(c) {
		return n
	}
	return int64(c)
}

// =============================================================================
// STACK - Resource plus quantity
// =============================================================================

type Stack struct {
	Resource ResourceType
	Units    int64
}

// =============================================================================
// TRANSFER BUFFER
// =============================================================================

type TransferBuffer struct {
	resource ResourceType
	stored   int64
	capacity int64
}

// NewTransferBuffer creates an empty buffer. Negative capacity is treated as 0.
func NewTransferBuffer(capacity int64) *TransferBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &TransferBuffer{capacity: capacity}
}

func (b *TransferBuffer) Resource() ResourceType { return b.resource }
func (b *TransferBuffer) Stored() int64          { return b.stored }
func (b *TransferBuffer) Capacity() int64        { return b.capacity }
func (b *TransferBuffer) Free() int64            { return b.capacity - b.stored }
func (b *TransferBuffer) IsEmpty() bool          { return b.stored == 0 }

// FillRatio is stored/capacity in [0, 1].
func (b *TransferBuffer) FillRatio() decimal.Decimal {
	if b.capacity == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(b.stored).Div(decimal.NewFromInt(b.capacity))
}

// Accepts reports whether a Fill of r could be accepted ignoring space.
func (b *TransferBuffer) Accepts(r ResourceType) bool {
	if r == nil {
		return false
	}
	return b.stored == 0 || SameResource(b.resource, r)
}

// Fill accepts up to min(s.Units, free, cap) and returns the accepted units.
func (b *TransferBuffer) Fill(s Stack, rc RateCap) int64 {
	if s.Units <= 0 || !b.Accepts(s.Resource) {
		return 0
	}
	accepted := rc.clamp(min(s.Units, b.Free()))
	if accepted <= 0 {
		return 0
	}
	b.resource = s.Resource
	b.stored += accepted
	return accepted
}

// Drain releases up to min(s.Units, stored, cap) and returns the released units.
// A nil s.Resource drains whatever the buffer holds.
func (b *TransferBuffer) Drain(s Stack, rc RateCap) int64 {
	if s.Units <= 0 || b.stored == 0 {
		return 0
	}
	if s.Resource != nil && !SameResource(b.resource, s.Resource) {
		return 0
	}
	released := rc.clamp(min(s.Units, b.stored))
	if released <= 0 {
		return 0
	}
	b.stored -= released
	if b.stored == 0 {
		b.resource = nil
	}
	return released
}

// =============================================================================
// STATE - Serializable form for stores and snapshots
// =============================================================================

type BufferState struct {
	ResourceID string
	Stored     int64
	Capacity   int64
}

func (b *TransferBuffer) State() BufferState {
	s := BufferState{Stored: b.stored, Capacity: b.capacity}
	if b.resource != nil {
		s.ResourceID = b.resource.ResourceID()
	}
	return s
}

// RestoreBuffer rebuilds a buffer, clamping stored into [0, capacity].
func RestoreBuffer(s BufferState) *TransferBuffer {
	b := NewTransferBuffer(s.Capacity)
	stored := max(0, min(s.Stored, b.capacity))
	if stored > 0 {
		if r := GetOrCreateResource(s.ResourceID); r != nil {
			b.resource = r
			b.stored = stored
		}
	}
	return b
}
