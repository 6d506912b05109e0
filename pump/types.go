/*
Package pump provides the fluid pump, a second upgrade variant built from
the same primitives as the experience pump.

PURPOSE:
  Shows that the engine is not tied to experience. The fluid pump moves
  world fluids between the container tank and reservoirs adjacent to the
  container, using the same CooldownGate, AutomationPolicy (direction
  only) and TransferBuffer rules.

KEY DIFFERENCES FROM THE EXPERIENCE PUMP:
  1. Counterparty: a reservoir buffer, not an actor
  2. No levels: the policy's direction is the only setting read
  3. Slower: the default interval is 20 ticks
  4. Entity-agnostic: worn or placed, it pumps around the container

RESOURCES:
  water, lava: tagged "fluid"

SEE ALSO:
  - upgrade.go: The tick logic
  - xp/: The experience domain
*/
package pump

import "github.com/warp/upgrade-engine/generic"

// =============================================================================
// WORLD FLUIDS
// =============================================================================

const TagWorldFluid = "fluid"

type Fluid string

func (f Fluid) ResourceID() string  { return string(f) }
func (f Fluid) ResourceTag() string { return TagWorldFluid }

var _ generic.ResourceType = Fluid("")

const (
	FluidWater Fluid = "water"
	FluidLava  Fluid = "lava"
)

func init() {
	generic.RegisterResource(FluidWater)
	generic.RegisterResource(FluidLava)
}

const (
	CooldownTicks = 20

	// BucketUnits is the default per-tick rate cap.
	BucketUnits = 1000
)

// =============================================================================
// WORLD CAPABILITY
// =============================================================================

// ReservoirLocator is implemented by worlds that hold fluid reservoirs.
// ReservoirsAround returns the reservoirs on the six faces of pos, in a
// stable order, skipping faces without one.
type ReservoirLocator interface {
	ReservoirsAround(pos generic.BlockPos) []Reservoir
}

// Reservoir is a world fluid source or sink at a block position.
type Reservoir struct {
	Pos    generic.BlockPos
	Buffer *generic.TransferBuffer
}

// EntityID names the reservoir in the transfer ledger.
func (r Reservoir) EntityID() generic.EntityID {
	return generic.EntityID("reservoir@" + r.Pos.String())
}
