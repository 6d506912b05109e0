package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/pump"
	"github.com/warp/upgrade-engine/xp"
)

type Tuning struct {
	TickRateHz         int   `yaml:"tick_rate_hz"`
	TankCapacity       int64 `yaml:"tank_capacity"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`

	XPPump    XPPump    `yaml:"xp_pump"`
	FluidPump FluidPump `yaml:"fluid_pump"`
}

type XPPump struct {
	CooldownTicks  int   `yaml:"cooldown_ticks"`
	SearchRange    int   `yaml:"search_range"`
	LiquidPerPoint int64 `yaml:"liquid_per_point"`
	// RateCapUnits < 0 means unlimited.
	RateCapUnits int64 `yaml:"rate_cap_units"`
	AllLevels    int   `yaml:"all_levels"`
	DefaultLevel int   `yaml:"default_level"`
}

type FluidPump struct {
	CooldownTicks int   `yaml:"cooldown_ticks"`
	RateCapUnits  int64 `yaml:"rate_cap_units"`
}

func Default() Tuning {
	return Tuning{
		TickRateHz:         20,
		TankCapacity:       16000,
		SnapshotEveryTicks: 1200,
		XPPump: XPPump{
			CooldownTicks:  xp.CooldownTicks,
			SearchRange:    xp.SearchRange,
			LiquidPerPoint: xp.LiquidPerPoint,
			RateCapUnits:   -1,
			AllLevels:      xp.AllLevels,
			DefaultLevel:   xp.DefaultLevel,
		},
		FluidPump: FluidPump{
			CooldownTicks: pump.CooldownTicks,
			RateCapUnits:  pump.BucketUnits,
		},
	}
}

// Load reads path over the defaults; keys missing from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	case t.TankCapacity < 0:
		return fmt.Errorf("tank_capacity must not be negative, got %d", t.TankCapacity)
	case t.XPPump.LiquidPerPoint <= 0:
		return fmt.Errorf("xp_pump.liquid_per_point must be positive, got %d", t.XPPump.LiquidPerPoint)
	case t.XPPump.SearchRange < 0:
		return fmt.Errorf("xp_pump.search_range must not be negative, got %d", t.XPPump.SearchRange)
	}
	return nil
}

func rateCap(units int64) generic.RateCap {
	if units < 0 {
		return generic.Unlimited
	}
	return generic.CapAt(units)
}

// XPConfig builds the experience pump configuration.
func (t Tuning) XPConfig() xp.Config {
	cfg := xp.DefaultConfig()
	cfg.CooldownTicks = t.XPPump.CooldownTicks
	cfg.SearchRange = t.XPPump.SearchRange
	cfg.Conversion = generic.Conversion{UnitsPerPoint: t.XPPump.LiquidPerPoint}
	cfg.RateCap = rateCap(t.XPPump.RateCapUnits)
	cfg.AllLevels = t.XPPump.AllLevels
	cfg.Defaults.Level = t.XPPump.DefaultLevel
	return cfg
}

// PumpConfig builds the fluid pump configuration.
func (t Tuning) PumpConfig() pump.Config {
	cfg := pump.DefaultConfig()
	cfg.CooldownTicks = t.FluidPump.CooldownTicks
	cfg.RateCap = rateCap(t.FluidPump.RateCapUnits)
	return cfg
}
