/*
Package xp implements experience automation on top of the generic engine.

PURPOSE:
  Experience is the first resource domain of the engine. Players hold
  experience as points grouped into levels; containers hold it as a fluid.
  The experience pump upgrade moves it between the two.

KEY CONCEPTS:
  - Curve: The vanilla level curve (points needed per level)
  - Fluids: Experience fluids sharing the "experience" tag
  - Player: A simulated actor holding points
  - PumpUpgrade: The tickable upgrade plus its manual actions

UNITS:
  1 point = 20 fluid units. Units → points truncates.

SEE ALSO:
  - curve.go: AmountForLevel / LevelForAmount
  - pump.go: Automatic and manual transfer paths
  - pump/: The fluid pump, a sibling upgrade variant
*/
package xp

import "github.com/warp/upgrade-engine/generic"

// =============================================================================
// EXPERIENCE FLUIDS
// =============================================================================

const TagExperience = "experience"

// Fluid is an experience fluid. Every Fluid carries TagExperience.
type Fluid string

func (f Fluid) ResourceID() string  { return string(f) }
func (f Fluid) ResourceTag() string { return TagExperience }

var _ generic.ResourceType = Fluid("")

const (
	FluidExperience Fluid = "experience"
	FluidLiquidXP   Fluid = "liquid_xp"
)

func init() {
	generic.RegisterResource(FluidExperience)
	generic.RegisterResource(FluidLiquidXP)
}

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	LiquidPerPoint = 20
	DefaultLevel   = 10
	CooldownTicks  = 5
	SearchRange    = 3

	// AllLevels is the ceiling used by "give all"; the buffer is the real limit.
	AllLevels = 100000
)

// Conversion is the points ↔ units ratio of experience.
var Conversion = generic.Conversion{UnitsPerPoint: LiquidPerPoint}

func PointsToLiquid(points int64) int64 { return Conversion.ToUnits(points) }
func LiquidToPoints(units int64) int64  { return Conversion.ToPoints(units) }
