/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built worlds that demonstrate the automation rules. Each
	scenario creates players, containers with tanks, installed upgrades
	and, for the fluid pump, reservoirs next to the container.

AVAILABLE SCENARIOS:

	player-above-threshold: Level 15 player next to an input pump set to 10
	direction-off:          Same world, pump switched off
	full-tank:              Input pump whose tank is already full
	give-all:               Full tank, level 0 player, manual give-all
	type-mismatch:          Tank holding water, experience pump set to input
	worn-backpack:          Backpacks worn by a player and by a mob
	fluid-pump:             Fluid pumps next to water reservoirs

HOW SCENARIOS WORK:
 1. Reset the store (clear transfers, records and buffers)
 2. Build a fresh world state with containers and players
 3. Install upgrades through the factory (records are persisted)
 4. Replace the running world; every gate opens

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "worn-backpack"}

USAGE VIA CLI:

	simulate run --scenario worn-backpack --ticks 40

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: World and upgrade endpoints
  - cmd/simulate: Headless runner over the same builders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/upgrade-engine/factory"
	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/pump"
	"github.com/warp/upgrade-engine/tuning"
	"github.com/warp/upgrade-engine/world"
	"github.com/warp/upgrade-engine/xp"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "player-above-threshold",
		Name:        "Player Above Threshold",
		Description: "Level 15 player beside a placed tank; input pump drains them to level 10",
		Category:    "experience",
	},
	{
		ID:          "direction-off",
		Name:        "Direction Off",
		Description: "Same world with the pump switched off; nothing moves",
		Category:    "experience",
	},
	{
		ID:          "full-tank",
		Name:        "Full Tank",
		Description: "Input pump with a full 50 unit tank; the player keeps their levels",
		Category:    "experience",
	},
	{
		ID:          "give-all",
		Name:        "Give All",
		Description: "Level 0 player and a full tank; use the give-all action",
		Category:    "experience",
	},
	{
		ID:          "type-mismatch",
		Name:        "Type Mismatch",
		Description: "Tank already holds water; the experience pump accepts nothing",
		Category:    "experience",
	},
	{
		ID:          "worn-backpack",
		Name:        "Worn Backpack",
		Description: "A player wears an output pump, a zombie wears an input pump",
		Category:    "experience",
	},
	{
		ID:          "fluid-pump",
		Name:        "Fluid Pump",
		Description: "One pump pulls water from a reservoir, another pushes lava into one",
		Category:    "fluid",
	},
}

// ScenarioIDs returns the known scenario IDs in display order.
func ScenarioIDs() []string {
	ids := make([]string, len(scenarios))
	for i, s := range scenarios {
		ids[i] = s.ID
	}
	return ids
}

// Scenarios returns the scenario catalogue.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	copy(out, scenarios)
	return out
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.CurrentScenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the store and replaces the world with a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")

	s, err := BuildScenario(ctx, req.ScenarioID, h.Factory, h.Tuning)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.World.Replace(s)
	h.setCurrentScenario(req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

// BuildScenario creates a fresh world for id. Upgrades are installed
// through f, so a store-backed factory persists their records.
func BuildScenario(ctx context.Context, id string, f *factory.UpgradeFactory, t tuning.Tuning) (*world.State, error) {
	b := &scenarioBuilder{ctx: ctx, f: f, t: t, s: world.NewState()}
	switch id {
	case "player-above-threshold":
		b.playerAboveThreshold(generic.DirectionInput)
	case "direction-off":
		b.playerAboveThreshold(generic.DirectionOff)
	case "full-tank":
		b.fullTank()
	case "give-all":
		b.giveAll()
	case "type-mismatch":
		b.typeMismatch()
	case "worn-backpack":
		b.wornBackpack()
	case "fluid-pump":
		b.fluidPump()
	default:
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
	if b.err != nil {
		return nil, fmt.Errorf("scenario %s: %w", id, b.err)
	}
	return b.s, nil
}

// scenarioBuilder keeps the first error so builders read top to bottom.
type scenarioBuilder struct {
	ctx context.Context
	f   *factory.UpgradeFactory
	t   tuning.Tuning
	s   *world.State
	err error
}

func (b *scenarioBuilder) container(id string, pos generic.BlockPos, capacity int64) *generic.Container {
	c := generic.NewContainer(generic.ContainerID(id), pos)
	c.AttachBuffer(generic.TagFluid, capacity)
	b.s.AddContainer(c)
	return c
}

func (b *scenarioBuilder) install(c *generic.Container, raw string) {
	if b.err != nil {
		return
	}
	_, b.err = b.f.InstallJSON(b.ctx, c, raw)
}

func (b *scenarioBuilder) player(id string, pos generic.Vec3, level int) *xp.Player {
	p := xp.NewPlayerAtLevel(generic.EntityID(id), pos, level)
	b.s.AddEntity(p)
	return p
}

func (b *scenarioBuilder) fill(c *generic.Container, r generic.ResourceType, units int64) {
	c.Buffer(generic.TagFluid).IfPresent(func(buf *generic.TransferBuffer) {
		buf.Fill(generic.Stack{Resource: r, Units: units}, generic.Unlimited)
	})
}

func (b *scenarioBuilder) playerAboveThreshold(d generic.Direction) {
	c := b.container("tank-1", generic.BlockPos{X: 0, Y: 64, Z: 0}, b.t.TankCapacity)
	b.install(c, factory.XPPumpJSON("xp-pump-1", string(c.ID), string(d), 10))
	b.player("steve", generic.Vec3{X: 1.5, Y: 64, Z: 0.5}, 15)
}

func (b *scenarioBuilder) fullTank() {
	c := b.container("tank-1", generic.BlockPos{X: 0, Y: 64, Z: 0}, 50)
	b.fill(c, xp.FluidExperience, 50)
	b.install(c, factory.XPPumpJSON("xp-pump-1", string(c.ID), "input", 10))
	b.player("steve", generic.Vec3{X: 1.5, Y: 64, Z: 0.5}, 15)
}

func (b *scenarioBuilder) giveAll() {
	c := b.container("tank-1", generic.BlockPos{X: 0, Y: 64, Z: 0}, b.t.TankCapacity)
	b.fill(c, xp.FluidExperience, b.t.TankCapacity)
	b.install(c, factory.XPPumpJSON("xp-pump-1", string(c.ID), "off", 10))
	b.player("steve", generic.Vec3{X: 1.5, Y: 64, Z: 0.5}, 0)
}

func (b *scenarioBuilder) typeMismatch() {
	c := b.container("tank-1", generic.BlockPos{X: 0, Y: 64, Z: 0}, b.t.TankCapacity)
	b.fill(c, pump.FluidWater, 500)
	b.install(c, factory.XPPumpJSON("xp-pump-1", string(c.ID), "input", 10))
	b.player("steve", generic.Vec3{X: 1.5, Y: 64, Z: 0.5}, 15)
}

func (b *scenarioBuilder) wornBackpack() {
	alex := b.player("alex", generic.Vec3{X: 20.5, Y: 64, Z: 20.5}, 5)
	pack := b.container("backpack-alex", generic.BlockPosOf(alex.Pos), b.t.TankCapacity)
	b.fill(pack, xp.FluidExperience, 4000)
	pack.SetHolder(alex)
	b.install(pack, factory.XPPumpJSON("xp-pump-alex", string(pack.ID), "output", 12))

	zombie := &world.Mob{ID: "zombie", Pos: generic.Vec3{X: -20.5, Y: 64, Z: -20.5}}
	b.s.AddEntity(zombie)
	zpack := b.container("backpack-zombie", generic.BlockPosOf(zombie.Pos), b.t.TankCapacity)
	zpack.SetHolder(zombie)
	b.install(zpack, factory.XPPumpJSON("xp-pump-zombie", string(zpack.ID), "input", 0))

	// Stands next to the zombie; a worn pump never scans for other players.
	b.player("steve", generic.Vec3{X: -19.5, Y: 64, Z: -20.5}, 15)
}

func (b *scenarioBuilder) fluidPump() {
	in := b.container("tank-water", generic.BlockPos{X: 0, Y: 64, Z: 0}, b.t.TankCapacity)
	b.install(in, factory.FluidPumpJSON("fluid-pump-in", string(in.ID), "input"))
	well := generic.NewTransferBuffer(8000)
	well.Fill(generic.Stack{Resource: pump.FluidWater, Units: 5000}, generic.Unlimited)
	b.s.AddReservoir(generic.BlockPos{X: 0, Y: 63, Z: 0}, well)

	out := b.container("tank-lava", generic.BlockPos{X: 10, Y: 64, Z: 0}, b.t.TankCapacity)
	b.fill(out, pump.FluidLava, 3000)
	b.install(out, factory.FluidPumpJSON("fluid-pump-out", string(out.ID), "output"))
	b.s.AddReservoir(generic.BlockPos{X: 10, Y: 63, Z: 0}, generic.NewTransferBuffer(2000))
}
