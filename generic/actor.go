/*
actor.go - Contracts consumed from the host world

PURPOSE:
  The engine never owns entities or the world. It consumes:
  - Entity: anything with an ID and a position
  - Actor: an entity holding a leveled resource pool (a player)
  - LevelCurve: the step function between points and levels
  - World: tick clock plus an actor locator for region scans

  Keeping these as interfaces lets tests drive the core with a tiny
  simulated world instead of a real one.

SEE ALSO:
  - xp/player.go: Player implements Actor
  - xp/curve.go: Curve implements LevelCurve
  - world/world.go: World implements World
*/
package generic

import "github.com/shopspring/decimal"

type Entity interface {
	EntityID() EntityID
	Position() Vec3
}

// Actor is the external resource pool. Level and Progress are derived from
// TotalPoints by the actor's own curve.
type Actor interface {
	Entity

	TotalPoints() int64
	Level() int

	// Progress is the fractional progress towards the next level, in [0, 1).
	Progress() decimal.Decimal

	// AdjustPoints grants (positive) or takes (negative) points.
	AdjustPoints(delta int64)
}

type LevelCurve interface {
	// AmountForLevel returns the cumulative points needed to reach level.
	AmountForLevel(level int) int64

	// LevelForAmount returns the highest level reachable with points.
	LevelForAmount(points int64) int
}

// ActorLocator finds entities inside a region. Results must be in a stable order.
type ActorLocator interface {
	FindEntitiesInRegion(r Region) []Entity
}

type World interface {
	ActorLocator
	CurrentTick() Tick
}
