package pump

import (
	"github.com/warp/upgrade-engine/generic"
)

const Kind generic.UpgradeKind = "fluid_pump"

type Config struct {
	CooldownTicks int
	RateCap       generic.RateCap
	BufferTag     string
	Defaults      generic.PolicyDefaults
}

func DefaultConfig() Config {
	return Config{
		CooldownTicks: CooldownTicks,
		RateCap:       generic.CapAt(BucketUnits),
		BufferTag:     generic.TagFluid,
		Defaults:      generic.DefaultPolicyDefaults(),
	}
}

// Upgrade pumps fluid between the container tank and adjacent reservoirs.
// At most one reservoir is served per attempt: the first, in locator order,
// that can move anything.
type Upgrade struct {
	id       generic.UpgradeID
	host     generic.BufferProvider
	policy   *generic.AutomationPolicy
	cooldown generic.CooldownGate
	cfg      Config
}

var (
	_ generic.TickableUpgrade = (*Upgrade)(nil)
	_ generic.Configurable    = (*Upgrade)(nil)
)

func NewUpgrade(id generic.UpgradeID, host generic.BufferProvider, record *generic.Record, cfg Config) *Upgrade {
	return &Upgrade{
		id:     id,
		host:   host,
		policy: generic.NewAutomationPolicy(record, cfg.Defaults),
		cfg:    cfg,
	}
}

func (u *Upgrade) ID() generic.UpgradeID             { return u.id }
func (u *Upgrade) Kind() generic.UpgradeKind         { return Kind }
func (u *Upgrade) Cooldown() *generic.CooldownGate   { return &u.cooldown }
func (u *Upgrade) Record() *generic.Record           { return u.policy.Record() }
func (u *Upgrade) Policy() *generic.AutomationPolicy { return u.policy }

func (u *Upgrade) Tick(_ generic.Entity, world generic.World, pos generic.BlockPos) []generic.Transfer {
	if !u.cooldown.IsOpen() {
		return nil
	}
	defer u.cooldown.Close(u.cfg.CooldownTicks)

	locator, ok := world.(ReservoirLocator)
	if !ok {
		return nil
	}
	tank, ok := u.host.Buffer(u.cfg.BufferTag).Get()
	if !ok {
		return nil
	}

	var t generic.Transfer
	switch u.policy.Direction() {
	case generic.DirectionInput:
		t = u.pull(tank, locator.ReservoirsAround(pos))
	case generic.DirectionOutput:
		t = u.push(tank, locator.ReservoirsAround(pos))
	}
	if t.IsEmpty() {
		return nil
	}
	t.UpgradeID = u.id
	return []generic.Transfer{t}
}

// pull drains the first usable reservoir into the tank.
func (u *Upgrade) pull(tank *generic.TransferBuffer, reservoirs []Reservoir) generic.Transfer {
	for _, res := range reservoirs {
		r := res.Buffer.Resource()
		if r == nil || !tank.Accepts(r) {
			continue
		}
		want := min(tank.Free(), res.Buffer.Stored())
		moved := res.Buffer.Drain(generic.Stack{Resource: r, Units: want}, u.cfg.RateCap)
		if moved <= 0 {
			continue
		}
		tank.Fill(generic.Stack{Resource: r, Units: moved}, generic.Unlimited)
		return generic.Transfer{
			EntityID:     res.EntityID(),
			ResourceType: r,
			Direction:    generic.DirectionInput,
			Units:        moved,
		}
	}
	return generic.Transfer{}
}

// push drains the tank into the first reservoir that accepts its fluid.
func (u *Upgrade) push(tank *generic.TransferBuffer, reservoirs []Reservoir) generic.Transfer {
	r := tank.Resource()
	if r == nil {
		return generic.Transfer{}
	}
	for _, res := range reservoirs {
		if !res.Buffer.Accepts(r) {
			continue
		}
		want := min(res.Buffer.Free(), tank.Stored())
		moved := tank.Drain(generic.Stack{Resource: r, Units: want}, u.cfg.RateCap)
		if moved <= 0 {
			continue
		}
		res.Buffer.Fill(generic.Stack{Resource: r, Units: moved}, generic.Unlimited)
		return generic.Transfer{
			EntityID:     res.EntityID(),
			ResourceType: r,
			Direction:    generic.DirectionOutput,
			Units:        moved,
		}
	}
	return generic.Transfer{}
}
