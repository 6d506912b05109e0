/*
Package generic provides the core upgrade automation engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for moving a
  bounded resource between an external actor and a container's internal
  buffer. Whether the resource is experience, a fluid from the world, or
  anything else with a unit conversion, the same engine handles cooldown
  gating, direction policy, rate-capped transfer and the transfer ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: Type-safe IDs for containers, upgrades, entities, transfers
  - Tick: Discrete world time step
  - BlockPos / Vec3 / Region: World geometry used for actor search
  - Direction: Off, Input (actor → buffer), Output (buffer → actor)
  - Transfer: An immutable ledger entry recording one executed movement

DESIGN PRINCIPLES:
  1. Single-threaded: The core never locks; the host serializes access
  2. Silent no-ops: "not applicable" is zero effect, never an error
  3. Type Safety: Strong typing for IDs prevents mixing container/upgrade IDs
  4. Auditability: Every movement yields a Transfer with an idempotency key

USAGE:
  c := generic.NewContainer("backpack-1", generic.BlockPos{X: 0, Y: 64, Z: 0})
  c.AttachBuffer(generic.TagFluid, 10000)
  c.Install(upgrade)
  transfers := c.Tick(world)

SEE ALSO:
  - buffer.go: TransferBuffer fill/drain contract
  - policy.go: AutomationPolicy over a persisted Record
  - transfer.go: Exchange (the transfer protocol)
  - upgrade.go: TickableUpgrade contract
*/
package generic

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ContainerID string
type UpgradeID string
type EntityID string
type TransferID string

// Tick is a discrete world time step.
type Tick uint64

// =============================================================================
// GEOMETRY
// =============================================================================

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X, Y, Z int
}

func (p BlockPos) Offset(dx, dy, dz int) BlockPos {
	return BlockPos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p BlockPos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

// Neighbors returns the six face-adjacent positions in a fixed order.
func (p BlockPos) Neighbors() []BlockPos {
	return []BlockPos{
		p.Offset(0, -1, 0),
		p.Offset(0, 1, 0),
		p.Offset(0, 0, -1),
		p.Offset(0, 0, 1),
		p.Offset(-1, 0, 0),
		p.Offset(1, 0, 0),
	}
}

// Vec3 is a continuous entity position.
type Vec3 struct {
	X, Y, Z float64
}

// BlockPosOf returns the block containing v.
func BlockPosOf(v Vec3) BlockPos {
	return BlockPos{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}

// Region is an axis-aligned box. Min is inclusive, Max is exclusive.
type Region struct {
	Min, Max Vec3
}

// RegionAround returns the block's unit box inflated by r on every side.
func RegionAround(p BlockPos, r int) Region {
	return Region{
		Min: Vec3{X: float64(p.X - r), Y: float64(p.Y - r), Z: float64(p.Z - r)},
		Max: Vec3{X: float64(p.X + 1 + r), Y: float64(p.Y + 1 + r), Z: float64(p.Z + 1 + r)},
	}
}

func (r Region) Contains(v Vec3) bool {
	return v.X >= r.Min.X && v.X < r.Max.X &&
		v.Y >= r.Min.Y && v.Y < r.Max.Y &&
		v.Z >= r.Min.Z && v.Z < r.Max.Z
}

// =============================================================================
// DIRECTION - Which way automation moves the resource
// =============================================================================

type Direction string

const (
	DirectionOff    Direction = "off"
	DirectionInput  Direction = "input"  // actor → buffer
	DirectionOutput Direction = "output" // buffer → actor
)

// ParseDirection accepts the persisted names case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionOff:
		return DirectionOff, nil
	case DirectionInput:
		return DirectionInput, nil
	case DirectionOutput:
		return DirectionOutput, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

func (d Direction) Valid() bool {
	return d == DirectionOff || d == DirectionInput || d == DirectionOutput
}

// =============================================================================
// TRANSFER - One executed movement between an actor and a buffer
// =============================================================================

type Transfer struct {
	ID           TransferID
	ContainerID  ContainerID
	UpgradeID    UpgradeID
	EntityID     EntityID
	ResourceType ResourceType
	Direction    Direction
	Points       int64 // points taken from (Input) or given to (Output) the actor
	Units        int64 // buffer units accepted (Input) or released (Output)
	Manual       bool  // true for user-triggered transfers that skip the gate and rate cap
	Tick         Tick

	IdempotencyKey string
	CreatedAt      time.Time
}

// IsEmpty reports whether nothing moved.
func (t Transfer) IsEmpty() bool { return t.Units == 0 && t.Points == 0 }

// SignedUnits is the change of the buffer: positive for Input, negative for Output.
func (t Transfer) SignedUnits() int64 {
	if t.Direction == DirectionOutput {
		return -t.Units
	}
	return t.Units
}
