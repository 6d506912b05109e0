/*
policy.go - Automation direction and level thresholds

PURPOSE:
  An AutomationPolicy is the user-editable contract of an upgrade: which
  way resources move automatically and which level thresholds bound the
  movement. It is pure data over a persisted Record; every setter writes
  one field and saves immediately so the next tick sees the change.

FIELDS (persisted key → default):
  direction     → input   Off | Input (actor → buffer) | Output (buffer → actor)
  level         → 10      Level the automatic path drives actors towards
  levelsToStore → 1       Levels a manual "take levels" pulls from the actor
  levelsToTake  → 1       Levels a manual "give levels" pushes to the actor

VALIDATION:
  None across fields, and negative values are accepted. An unreachable
  configuration simply produces a transfer amount <= 0, which the
  Exchange short-circuits to a no-op.

EXAMPLE:
  policy := generic.NewAutomationPolicy(record, generic.DefaultPolicyDefaults())
  _ = policy.SetDirection(generic.DirectionOutput)
  _ = policy.SetLevel(30)
*/
package generic

// =============================================================================
// PERSISTED KEYS AND DEFAULTS
// =============================================================================

const (
	KeyDirection     = "direction"
	KeyLevel         = "level"
	KeyLevelsToStore = "levelsToStore"
	KeyLevelsToTake  = "levelsToTake"
)

type PolicyDefaults struct {
	Direction     Direction
	Level         int
	LevelsToStore int
	LevelsToTake  int
}

func DefaultPolicyDefaults() PolicyDefaults {
	return PolicyDefaults{
		Direction:     DirectionInput,
		Level:         10,
		LevelsToStore: 1,
		LevelsToTake:  1,
	}
}

// =============================================================================
// AUTOMATION POLICY
// =============================================================================

type AutomationPolicy struct {
	record   *Record
	defaults PolicyDefaults
}

func NewAutomationPolicy(record *Record, defaults PolicyDefaults) *AutomationPolicy {
	if record == nil {
		record = NewRecord(nil, nil)
	}
	return &AutomationPolicy{record: record, defaults: defaults}
}

func (p *AutomationPolicy) Record() *Record { return p.record }

// Direction returns the stored direction. Unknown values read as the default.
func (p *AutomationPolicy) Direction() Direction {
	s, ok := p.record.String(KeyDirection)
	if !ok {
		return p.defaults.Direction
	}
	d, err := ParseDirection(s)
	if err != nil {
		return p.defaults.Direction
	}
	return d
}

func (p *AutomationPolicy) SetDirection(d Direction) error {
	return p.record.SetString(KeyDirection, string(d))
}

func (p *AutomationPolicy) Level() int {
	return p.record.IntOr(KeyLevel, p.defaults.Level)
}

func (p *AutomationPolicy) SetLevel(level int) error {
	return p.record.SetInt(KeyLevel, level)
}

func (p *AutomationPolicy) LevelsToStore() int {
	return p.record.IntOr(KeyLevelsToStore, p.defaults.LevelsToStore)
}

func (p *AutomationPolicy) SetLevelsToStore(levels int) error {
	return p.record.SetInt(KeyLevelsToStore, levels)
}

func (p *AutomationPolicy) LevelsToTake() int {
	return p.record.IntOr(KeyLevelsToTake, p.defaults.LevelsToTake)
}

func (p *AutomationPolicy) SetLevelsToTake(levels int) error {
	return p.record.SetInt(KeyLevelsToTake, levels)
}

// Settings is a read-only view for UI collaborators.
type Settings struct {
	Direction     Direction
	Level         int
	LevelsToStore int
	LevelsToTake  int
}

func (p *AutomationPolicy) Settings() Settings {
	return Settings{
		Direction:     p.Direction(),
		Level:         p.Level(),
		LevelsToStore: p.LevelsToStore(),
		LevelsToTake:  p.LevelsToTake(),
	}
}
