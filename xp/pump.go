/*
pump.go - Experience pump upgrade

PURPOSE:
  The experience pump is installed in a container with a fluid tank. On
  every open tick it looks for players (the wearer, or every player within
  SearchRange of a placed container) and moves experience between them
  and the tank according to its AutomationPolicy.

TICK STATE MACHINE:
  1. A supplied entity that is not an actor → do nothing, keep the gate
  2. Gate closed → do nothing
  3. Targets = {entity} or all actors in the cube pos ± SearchRange
  4. Per target: no tank → skip; else run the Exchange for the direction
  5. Close the gate for CooldownTicks, even when no target was found

MANUAL ACTIONS:
  take-levels  Input down to max(level - levelsToStore, 0)
  take-all     Input down to level 0
  give-levels  Output up to level + levelsToTake
  give-all     Output up to AllLevels
  All four ignore the rate cap and the gate.

SEE ALSO:
  - generic/transfer.go: Exchange and eligibility
  - generic/policy.go: Persisted settings
*/
package xp

import (
	"fmt"

	"github.com/warp/upgrade-engine/generic"
)

const Kind generic.UpgradeKind = "xp_pump"

const (
	ActionTakeLevels generic.ManualAction = "take-levels"
	ActionTakeAll    generic.ManualAction = "take-all"
	ActionGiveLevels generic.ManualAction = "give-levels"
	ActionGiveAll    generic.ManualAction = "give-all"
)

// Actions lists the manual actions in display order.
var Actions = []generic.ManualAction{ActionTakeLevels, ActionTakeAll, ActionGiveLevels, ActionGiveAll}

// =============================================================================
// CONFIG
// =============================================================================

type Config struct {
	CooldownTicks int
	SearchRange   int
	BufferTag     string
	AllLevels     int

	// RateCap bounds the automatic path per fill/drain call.
	RateCap    generic.RateCap
	Conversion generic.Conversion
	Defaults   generic.PolicyDefaults
}

func DefaultConfig() Config {
	return Config{
		CooldownTicks: CooldownTicks,
		SearchRange:   SearchRange,
		BufferTag:     generic.TagFluid,
		AllLevels:     AllLevels,
		RateCap:       generic.Unlimited,
		Conversion:    Conversion,
		Defaults:      generic.DefaultPolicyDefaults(),
	}
}

// =============================================================================
// PUMP UPGRADE
// =============================================================================

type PumpUpgrade struct {
	id       generic.UpgradeID
	host     generic.BufferProvider
	policy   *generic.AutomationPolicy
	cooldown generic.CooldownGate
	cfg      Config
	exchange generic.Exchange
}

var (
	_ generic.TickableUpgrade = (*PumpUpgrade)(nil)
	_ generic.Configurable    = (*PumpUpgrade)(nil)
	_ generic.ManualTransfers = (*PumpUpgrade)(nil)
)

// NewPumpUpgrade creates a pump reading and writing its settings in record.
// host is queried for the tank on every interaction.
func NewPumpUpgrade(id generic.UpgradeID, host generic.BufferProvider, record *generic.Record, cfg Config) *PumpUpgrade {
	return &PumpUpgrade{
		id:     id,
		host:   host,
		policy: generic.NewAutomationPolicy(record, cfg.Defaults),
		cfg:    cfg,
		exchange: generic.Exchange{
			Curve:      DefaultCurve,
			Conversion: cfg.Conversion,
			RateCap:    cfg.RateCap,
		},
	}
}

func (u *PumpUpgrade) ID() generic.UpgradeID             { return u.id }
func (u *PumpUpgrade) Kind() generic.UpgradeKind         { return Kind }
func (u *PumpUpgrade) Cooldown() *generic.CooldownGate   { return &u.cooldown }
func (u *PumpUpgrade) Record() *generic.Record           { return u.policy.Record() }
func (u *PumpUpgrade) Policy() *generic.AutomationPolicy { return u.policy }
func (u *PumpUpgrade) Config() Config                    { return u.cfg }

func (u *PumpUpgrade) Tick(entity generic.Entity, world generic.World, pos generic.BlockPos) []generic.Transfer {
	var target generic.Actor
	if entity != nil {
		a, ok := entity.(generic.Actor)
		if !ok {
			return nil
		}
		target = a
	}
	if !u.cooldown.IsOpen() {
		return nil
	}

	var out []generic.Transfer
	if target != nil {
		out = u.appendNonEmpty(out, u.interact(target))
	} else if world != nil {
		for _, e := range world.FindEntitiesInRegion(generic.RegionAround(pos, u.cfg.SearchRange)) {
			if a, ok := e.(generic.Actor); ok {
				out = u.appendNonEmpty(out, u.interact(a))
			}
		}
	}

	u.cooldown.Close(u.cfg.CooldownTicks)
	return out
}

func (u *PumpUpgrade) appendNonEmpty(out []generic.Transfer, t generic.Transfer) []generic.Transfer {
	if t.IsEmpty() {
		return out
	}
	t.UpgradeID = u.id
	return append(out, t)
}

func (u *PumpUpgrade) interact(a generic.Actor) generic.Transfer {
	var t generic.Transfer
	u.host.Buffer(u.cfg.BufferTag).IfPresent(func(buf *generic.TransferBuffer) {
		level := u.policy.Level()
		switch u.policy.Direction() {
		case generic.DirectionInput:
			if generic.InputEligible(a, level) {
				t = u.exchange.FillFromActor(a, buf, experienceFluid(buf), level, false)
			}
		case generic.DirectionOutput:
			if generic.OutputEligible(a, level) {
				t = u.exchange.DrainToActor(a, buf, experienceFluid(buf), level, false)
			}
		}
	})
	return t
}

// experienceFluid keeps whichever experience fluid the tank already holds.
func experienceFluid(buf *generic.TransferBuffer) generic.ResourceType {
	if r := buf.Resource(); generic.HasTag(r, TagExperience) {
		return r
	}
	return FluidExperience
}

// =============================================================================
// MANUAL TRANSFERS
// =============================================================================

func (u *PumpUpgrade) TakeLevelsFromPlayer(a generic.Actor) generic.Transfer {
	return u.fill(a, max(a.Level()-u.policy.LevelsToStore(), 0))
}

func (u *PumpUpgrade) TakeAllExperienceFromPlayer(a generic.Actor) generic.Transfer {
	return u.fill(a, 0)
}

func (u *PumpUpgrade) GiveLevelsToPlayer(a generic.Actor) generic.Transfer {
	return u.drain(a, a.Level()+u.policy.LevelsToTake())
}

func (u *PumpUpgrade) GiveAllExperienceToPlayer(a generic.Actor) generic.Transfer {
	return u.drain(a, u.cfg.AllLevels)
}

func (u *PumpUpgrade) fill(a generic.Actor, stopAt int) generic.Transfer {
	t := generic.Transfer{EntityID: a.EntityID(), Direction: generic.DirectionInput, Manual: true}
	u.host.Buffer(u.cfg.BufferTag).IfPresent(func(buf *generic.TransferBuffer) {
		t = u.exchange.FillFromActor(a, buf, experienceFluid(buf), stopAt, true)
	})
	t.UpgradeID = u.id
	return t
}

func (u *PumpUpgrade) drain(a generic.Actor, stopAt int) generic.Transfer {
	t := generic.Transfer{EntityID: a.EntityID(), Direction: generic.DirectionOutput, Manual: true}
	u.host.Buffer(u.cfg.BufferTag).IfPresent(func(buf *generic.TransferBuffer) {
		t = u.exchange.DrainToActor(a, buf, experienceFluid(buf), stopAt, true)
	})
	t.UpgradeID = u.id
	return t
}

// Perform dispatches a manual action by name.
func (u *PumpUpgrade) Perform(action generic.ManualAction, a generic.Actor) (generic.Transfer, error) {
	switch action {
	case ActionTakeLevels:
		return u.TakeLevelsFromPlayer(a), nil
	case ActionTakeAll:
		return u.TakeAllExperienceFromPlayer(a), nil
	case ActionGiveLevels:
		return u.GiveLevelsToPlayer(a), nil
	case ActionGiveAll:
		return u.GiveAllExperienceToPlayer(a), nil
	}
	return generic.Transfer{}, fmt.Errorf("%w: %s on %s", generic.ErrUnsupportedAction, action, Kind)
}
