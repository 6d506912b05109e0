/*
transfer.go - Bounded transfer between an actor and a buffer

PURPOSE:
  The Exchange is the protocol shared by the automatic (per-tick) path and
  the manual (user-triggered) path. It moves points from an actor into a
  buffer until the actor is down to a level, or from a buffer into an actor
  until the actor is up to a level.

PROTOCOL:
  FillFromActor (Input):
    points = actor.TotalPoints - AmountForLevel(stopAt)   must be > 0
    units  = points * ratio
    accepted = buffer.Fill(units, cap)
    actor.AdjustPoints(-accepted / ratio)

  DrainToActor (Output):
    points = AmountForLevel(stopAt) - actor.TotalPoints   must be > 0
    units  = points * ratio
    released = buffer.Drain(units, cap)
    actor.AdjustPoints(+released / ratio)

  cap is Unlimited when ignoreRateCap is set (manual path), else the
  Exchange's RateCap.

TRUNCATION:
  units → points divides with truncation. Up to ratio-1 units per call are
  not reflected on the actor. This is accepted as a fixed rounding cost;
  there is no carry-over accounting.

ELIGIBILITY (automatic path only):
  Input  when target < level, or target == level with progress > 0
  Output when target > level
  The asymmetry means both are never eligible for the same target.

SEE ALSO:
  - buffer.go: Fill/Drain bounds
  - xp/pump.go: Automatic and manual callers
*/
package generic

// Conversion relates actor points to buffer units by a fixed integer ratio.
type Conversion struct {
	UnitsPerPoint int64
}

func (c Conversion) ratio() int64 {
	if c.UnitsPerPoint <= 0 {
		return 1
	}
	return c.UnitsPerPoint
}

func (c Conversion) ToUnits(points int64) int64 { return points * c.ratio() }

func (c Conversion) ToPoints(units int64) int64 { return units / c.ratio() }

// =============================================================================
// ELIGIBILITY
// =============================================================================

func InputEligible(a Actor, target int) bool {
	level := a.Level()
	return target < level || (target == level && a.Progress().IsPositive())
}

func OutputEligible(a Actor, target int) bool {
	return target > a.Level()
}

// =============================================================================
// EXCHANGE
// =============================================================================

type Exchange struct {
	Curve      LevelCurve
	Conversion Conversion
	RateCap    RateCap
}

func (e Exchange) capFor(ignoreRateCap bool) RateCap {
	if ignoreRateCap {
		return Unlimited
	}
	return e.RateCap
}

// FillFromActor moves points from the actor into the buffer until the actor
// is down to stopAtLevel.
func (e Exchange) FillFromActor(a Actor, buf *TransferBuffer, r ResourceType, stopAtLevel int, ignoreRateCap bool) Transfer {
	t := Transfer{EntityID: a.EntityID(), ResourceType: r, Direction: DirectionInput, Manual: ignoreRateCap}
	points := a.TotalPoints() - e.Curve.AmountForLevel(stopAtLevel)
	if points <= 0 {
		return t
	}
	accepted := buf.Fill(Stack{Resource: r, Units: e.Conversion.ToUnits(points)}, e.capFor(ignoreRateCap))
	if accepted <= 0 {
		return t
	}
	taken := e.Conversion.ToPoints(accepted)
	a.AdjustPoints(-taken)
	t.Units = accepted
	t.Points = taken
	return t
}

// DrainToActor moves units from the buffer into the actor until the actor
// is up to stopAtLevel.
func (e Exchange) DrainToActor(a Actor, buf *TransferBuffer, r ResourceType, stopAtLevel int, ignoreRateCap bool) Transfer {
	t := Transfer{EntityID: a.EntityID(), ResourceType: r, Direction: DirectionOutput, Manual: ignoreRateCap}
	points := e.Curve.AmountForLevel(stopAtLevel) - a.TotalPoints()
	if points <= 0 {
		return t
	}
	released := buf.Drain(Stack{Resource: r, Units: e.Conversion.ToUnits(points)}, e.capFor(ignoreRateCap))
	if released <= 0 {
		return t
	}
	given := e.Conversion.ToPoints(released)
	a.AdjustPoints(given)
	t.Units = released
	t.Points = given
	return t
}
