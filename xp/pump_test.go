package xp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/xp"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testWorld returns entities inside the region in insertion order.
type testWorld struct {
	entities []generic.Entity
}

func (w *testWorld) FindEntitiesInRegion(r generic.Region) []generic.Entity {
	var out []generic.Entity
	for _, e := range w.entities {
		if r.Contains(e.Position()) {
			out = append(out, e)
		}
	}
	return out
}

func (w *testWorld) CurrentTick() generic.Tick { return 0 }

type mob struct{ pos generic.Vec3 }

func (m *mob) EntityID() generic.EntityID { return "zombie" }
func (m *mob) Position() generic.Vec3     { return m.pos }

var origin = generic.BlockPos{X: 0, Y: 64, Z: 0}

// nextTo is inside the search cube of a container at origin.
var nextTo = generic.Vec3{X: 1.5, Y: 64, Z: 0.5}

type pumpSetup struct {
	c    *generic.Container
	pump *xp.PumpUpgrade
	tank *generic.TransferBuffer
}

func newPump(t *testing.T, capacity int64, cfg xp.Config, fields map[string]any) pumpSetup {
	t.Helper()
	c := generic.NewContainer("tank-1", origin)
	tank := c.AttachBuffer(generic.TagFluid, capacity)
	u := xp.NewPumpUpgrade("pump-1", c, generic.NewRecord(fields, nil), cfg)
	c.Install(u)
	return pumpSetup{c: c, pump: u, tank: tank}
}

func settings(direction string, level int) map[string]any {
	return map[string]any{generic.KeyDirection: direction, generic.KeyLevel: level}
}

// =============================================================================
// AUTOMATIC PATH
// =============================================================================

func TestPump_PlayerAboveThreshold_DrainedToTargetLevel(t *testing.T) {
	// GIVEN: A level 15 player beside an input pump targeting level 10
	s := newPump(t, 100000, xp.DefaultConfig(), settings("input", 10))
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	w := &testWorld{entities: []generic.Entity{p}}
	before := p.TotalPoints()

	// WHEN: The container ticks once
	out := s.c.Tick(w)

	// THEN: The player is down to exactly level 10 and the tank holds the units
	require.Len(t, out, 1)
	assert.Equal(t, xp.AmountForLevel(10), p.TotalPoints())
	assert.Equal(t, 10, p.Level())
	assert.Equal(t, (before-xp.AmountForLevel(10))*xp.LiquidPerPoint, s.tank.Stored())
	assert.Equal(t, out[0].Units, s.tank.Stored())
	assert.Equal(t, generic.UpgradeID("pump-1"), out[0].UpgradeID)
	assert.Equal(t, generic.ContainerID("tank-1"), out[0].ContainerID)
	assert.Equal(t, xp.FluidExperience, out[0].ResourceType)
}

func TestPump_PlayerAboveThreshold_TruncatedToCapacity(t *testing.T) {
	// GIVEN: The same setup with a 1000 unit tank
	s := newPump(t, 1000, xp.DefaultConfig(), settings("input", 10))
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)

	s.c.Tick(&testWorld{entities: []generic.Entity{p}})

	// THEN: The tank is full and the player lost 1000/20 points
	assert.Equal(t, int64(1000), s.tank.Stored())
	assert.Equal(t, xp.AmountForLevel(15)-50, p.TotalPoints())
}

func TestPump_DirectionOff_NoMutation(t *testing.T) {
	s := newPump(t, 1000, xp.DefaultConfig(), settings("off", 10))
	s.tank.Fill(generic.Stack{Resource: xp.FluidExperience, Units: 300}, generic.Unlimited)
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	before := p.TotalPoints()

	out := s.c.Tick(&testWorld{entities: []generic.Entity{p}})

	assert.Empty(t, out)
	assert.Equal(t, before, p.TotalPoints())
	assert.Equal(t, int64(300), s.tank.Stored())
}

func TestPump_FullTank_AcceptsNothing(t *testing.T) {
	s := newPump(t, 50, xp.DefaultConfig(), settings("input", 10))
	s.tank.Fill(generic.Stack{Resource: xp.FluidExperience, Units: 50}, generic.Unlimited)
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	before := p.TotalPoints()

	out := s.c.Tick(&testWorld{entities: []generic.Entity{p}})

	assert.Empty(t, out)
	assert.Equal(t, before, p.TotalPoints())
	assert.Equal(t, int64(50), s.tank.Stored())
}

func TestPump_TypeMismatch_AcceptsNothing(t *testing.T) {
	// GIVEN: A tank that already holds a non-experience fluid
	water := generic.StringResource{ID: "water", Tag: "fluid"}
	s := newPump(t, 1000, xp.DefaultConfig(), settings("input", 10))
	s.tank.Fill(generic.Stack{Resource: water, Units: 200}, generic.Unlimited)
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	before := p.TotalPoints()

	// WHEN: The pump ticks
	out := s.c.Tick(&testWorld{entities: []generic.Entity{p}})

	// THEN: Nothing moves
	assert.Empty(t, out)
	assert.Equal(t, before, p.TotalPoints())
	assert.Equal(t, int64(200), s.tank.Stored())
	assert.Equal(t, "water", s.tank.Resource().ResourceID())
}

func TestPump_Output_RaisesPlayerToTarget(t *testing.T) {
	s := newPump(t, 16000, xp.DefaultConfig(), settings("output", 12))
	s.tank.Fill(generic.Stack{Resource: xp.FluidLiquidXP, Units: 10000}, generic.Unlimited)
	p := xp.NewPlayerAtLevel("alex", nextTo, 5)

	out := s.c.Tick(&testWorld{entities: []generic.Entity{p}})

	require.Len(t, out, 1)
	assert.Equal(t, 12, p.Level())
	assert.Equal(t, xp.FluidLiquidXP, out[0].ResourceType, "keeps the fluid already in the tank")
	assert.Equal(t, int64(10000)-(xp.AmountForLevel(12)-xp.AmountForLevel(5))*20, s.tank.Stored())
}

func TestPump_ClosedGate_IsNoOp(t *testing.T) {
	s := newPump(t, 100000, xp.DefaultConfig(), settings("input", 10))
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	s.pump.Cooldown().Close(3)
	before := p.TotalPoints()

	out := s.pump.Tick(nil, &testWorld{entities: []generic.Entity{p}}, origin)

	assert.Empty(t, out)
	assert.Equal(t, before, p.TotalPoints())
	assert.True(t, s.tank.IsEmpty())
	assert.Equal(t, 3, s.pump.Cooldown().Remaining())
}

func TestPump_CooldownPeriodIsFiveTicks(t *testing.T) {
	// GIVEN: A pump limited to one point per attempt, so every attempt moves something
	cfg := xp.DefaultConfig()
	cfg.RateCap = generic.CapAt(20)
	s := newPump(t, 100000, cfg, settings("input", 0))
	p := xp.NewPlayerAtLevel("steve", nextTo, 30)
	w := &testWorld{entities: []generic.Entity{p}}

	// WHEN: Ticking 16 times
	var firedAt []int
	for tick := 1; tick <= 16; tick++ {
		if len(s.c.Tick(w)) > 0 {
			firedAt = append(firedAt, tick)
			// THEN: The gate stays closed for the following ticks
			assert.False(t, s.pump.Cooldown().IsOpen())
		}
	}
	assert.Equal(t, []int{1, 6, 11, 16}, firedAt)
}

func TestPump_GateClosesEvenWithoutTargets(t *testing.T) {
	s := newPump(t, 1000, xp.DefaultConfig(), settings("input", 10))

	s.c.Tick(&testWorld{})

	assert.Equal(t, xp.CooldownTicks, s.pump.Cooldown().Remaining())
}

func TestPump_WornByNonPlayer_KeepsGateOpen(t *testing.T) {
	// GIVEN: A backpack worn by a mob, with a player standing right beside it
	s := newPump(t, 1000, xp.DefaultConfig(), settings("input", 0))
	zombie := &mob{pos: nextTo}
	s.c.SetHolder(zombie)
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	before := p.TotalPoints()

	// WHEN: Ticking many times
	for i := 0; i < 12; i++ {
		assert.Empty(t, s.c.Tick(&testWorld{entities: []generic.Entity{zombie, p}}))
	}

	// THEN: The gate was never consumed and nobody was touched
	assert.True(t, s.pump.Cooldown().IsOpen())
	assert.Equal(t, before, p.TotalPoints())
}

func TestPump_WornByPlayer_OnlyServesWearer(t *testing.T) {
	s := newPump(t, 100000, xp.DefaultConfig(), settings("input", 10))
	wearer := xp.NewPlayerAtLevel("alex", nextTo, 20)
	bystander := xp.NewPlayerAtLevel("steve", nextTo, 20)
	s.c.SetHolder(wearer)

	out := s.c.Tick(&testWorld{entities: []generic.Entity{wearer, bystander}})

	require.Len(t, out, 1)
	assert.Equal(t, generic.EntityID("alex"), out[0].EntityID)
	assert.Equal(t, 10, wearer.Level())
	assert.Equal(t, 20, bystander.Level())
}

func TestPump_PlacedScansSearchRange(t *testing.T) {
	s := newPump(t, 100000, xp.DefaultConfig(), settings("input", 10))
	near := xp.NewPlayerAtLevel("near", generic.Vec3{X: 3.5, Y: 66, Z: -2.5}, 15)
	far := xp.NewPlayerAtLevel("far", generic.Vec3{X: 4.5, Y: 64, Z: 0.5}, 15)
	z := &mob{pos: nextTo}

	out := s.c.Tick(&testWorld{entities: []generic.Entity{z, near, far}})

	require.Len(t, out, 1)
	assert.Equal(t, generic.EntityID("near"), out[0].EntityID)
	assert.Equal(t, 15, far.Level())
}

func TestPump_NoTank_IsSilentNoOp(t *testing.T) {
	c := generic.NewContainer("bare", origin)
	u := xp.NewPumpUpgrade("pump-1", c, generic.NewRecord(settings("input", 10), nil), xp.DefaultConfig())
	c.Install(u)
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	before := p.TotalPoints()

	out := c.Tick(&testWorld{entities: []generic.Entity{p}})
	tr, err := u.Perform(xp.ActionTakeAll, p)

	assert.Empty(t, out)
	require.NoError(t, err)
	assert.True(t, tr.IsEmpty())
	assert.Equal(t, before, p.TotalPoints())
}

func TestPump_SettingsChangeTakesEffectNextTick(t *testing.T) {
	s := newPump(t, 100000, xp.DefaultConfig(), settings("off", 10))
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)
	w := &testWorld{entities: []generic.Entity{p}}
	s.c.Tick(w)
	require.False(t, s.pump.Cooldown().IsOpen())

	in := generic.DirectionInput
	require.NoError(t, generic.ApplySettings(s.pump, generic.SettingsPatch{Direction: &in}))
	out := s.c.Tick(w)

	assert.Len(t, out, 1)
	assert.Equal(t, 10, p.Level())
}

// =============================================================================
// MANUAL PATH
// =============================================================================

func TestPump_GiveAll_IgnoresRateCapAndGate(t *testing.T) {
	// GIVEN: A tank holding exactly twenty levels of experience and a tight rate cap
	cfg := xp.DefaultConfig()
	cfg.RateCap = generic.CapAt(20)
	units := xp.PointsToLiquid(xp.AmountForLevel(20))
	s := newPump(t, 16000, cfg, settings("off", 10))
	s.tank.Fill(generic.Stack{Resource: xp.FluidExperience, Units: units}, generic.Unlimited)
	s.pump.Cooldown().Close(5)
	p := xp.NewPlayerAtLevel("steve", nextTo, 0)

	// WHEN: Giving everything
	tr := s.pump.GiveAllExperienceToPlayer(p)

	// THEN: The whole tank went to the player in one call
	assert.Equal(t, units, tr.Units)
	assert.Equal(t, xp.AmountForLevel(20), tr.Points)
	assert.Equal(t, 20, p.Level())
	assert.True(t, s.tank.IsEmpty())
	assert.True(t, tr.Manual)
	assert.Equal(t, generic.DirectionOutput, tr.Direction)
}

func TestPump_GiveAll_LevelRisesMonotonically(t *testing.T) {
	s := newPump(t, 1000000, xp.DefaultConfig(), settings("off", 10))
	s.tank.Fill(generic.Stack{Resource: xp.FluidExperience, Units: 1000000}, generic.Unlimited)
	p := xp.NewPlayerAtLevel("steve", nextTo, 0)

	tr := s.pump.GiveAllExperienceToPlayer(p)

	assert.Equal(t, int64(1000000), tr.Units)
	assert.Equal(t, int64(50000), p.TotalPoints())
	assert.Equal(t, xp.LevelForAmount(50000), p.Level())
	assert.GreaterOrEqual(t, p.TotalPoints(), xp.AmountForLevel(p.Level()))
	assert.Less(t, p.TotalPoints(), xp.AmountForLevel(p.Level()+1))
}

func TestPump_TakeLevels_UsesLevelsToStore(t *testing.T) {
	fields := settings("off", 10)
	fields[generic.KeyLevelsToStore] = 2
	s := newPump(t, 100000, xp.DefaultConfig(), fields)
	p := xp.NewPlayerAtLevel("steve", nextTo, 15)

	tr, err := s.pump.Perform(xp.ActionTakeLevels, p)

	require.NoError(t, err)
	assert.Equal(t, 13, p.Level())
	assert.Equal(t, (xp.AmountForLevel(15)-xp.AmountForLevel(13))*20, tr.Units)
}

func TestPump_TakeLevels_ClampsAtZero(t *testing.T) {
	fields := settings("off", 10)
	fields[generic.KeyLevelsToStore] = 50
	s := newPump(t, 100000, xp.DefaultConfig(), fields)
	p := xp.NewPlayerAtLevel("steve", nextTo, 3)
	p.AdjustPoints(4)

	s.pump.TakeLevelsFromPlayer(p)

	assert.Equal(t, int64(0), p.TotalPoints())
}

func TestPump_TakeAll(t *testing.T) {
	s := newPump(t, 100000, xp.DefaultConfig(), settings("off", 10))
	p := xp.NewPlayerAtLevel("steve", nextTo, 7)
	p.AdjustPoints(5)
	before := p.TotalPoints()

	tr, err := s.pump.Perform(xp.ActionTakeAll, p)

	require.NoError(t, err)
	assert.Equal(t, before, tr.Points)
	assert.Equal(t, int64(0), p.TotalPoints())
	assert.Equal(t, before*20, s.tank.Stored())
}

func TestPump_GiveLevels_UsesLevelsToTake(t *testing.T) {
	fields := settings("off", 10)
	fields[generic.KeyLevelsToTake] = 3
	s := newPump(t, 100000, xp.DefaultConfig(), fields)
	s.tank.Fill(generic.Stack{Resource: xp.FluidExperience, Units: 50000}, generic.Unlimited)
	p := xp.NewPlayerAtLevel("steve", nextTo, 5)

	tr, err := s.pump.Perform(xp.ActionGiveLevels, p)

	require.NoError(t, err)
	assert.Equal(t, 8, p.Level())
	assert.Equal(t, (xp.AmountForLevel(8)-xp.AmountForLevel(5))*20, tr.Units)
}

func TestPump_UnknownAction(t *testing.T) {
	s := newPump(t, 1000, xp.DefaultConfig(), nil)

	_, err := s.pump.Perform("juggle", xp.NewPlayerAtLevel("steve", nextTo, 1))

	assert.ErrorIs(t, err, generic.ErrUnsupportedAction)
}

func TestPump_DefaultsWhenRecordEmpty(t *testing.T) {
	s := newPump(t, 1000, xp.DefaultConfig(), nil)

	assert.Equal(t, generic.DirectionInput, s.pump.Policy().Direction())
	assert.Equal(t, xp.DefaultLevel, s.pump.Policy().Level())
}
