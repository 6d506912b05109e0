package generic

// UpgradeKind names an upgrade variant, e.g. "xp_pump".
type UpgradeKind string

// TickableUpgrade is the scheduled unit of work installed in a container.
// Variants compose CooldownGate and AutomationPolicy rather than sharing a
// base type.
type TickableUpgrade interface {
	ID() UpgradeID
	Kind() UpgradeKind

	// Cooldown is decremented by the host once per tick before Tick is called.
	Cooldown() *CooldownGate

	// Record holds the persisted settings of the upgrade.
	Record() *Record

	// Tick runs one automation attempt. entity is the container's holder
	// when worn, nil when placed in the world. Only non-empty transfers are
	// returned.
	Tick(entity Entity, world World, pos BlockPos) []Transfer
}

// ManualAction names a user-triggered transfer, e.g. "give-all".
type ManualAction string

// ManualTransfers is offered by upgrades that support user-triggered
// transfers. Those bypass the cooldown gate and the rate cap.
type ManualTransfers interface {
	Perform(action ManualAction, a Actor) (Transfer, error)
}

// Configurable upgrades expose their AutomationPolicy to UI collaborators.
type Configurable interface {
	TickableUpgrade
	Policy() *AutomationPolicy
}

// SettingsPatch carries the fields a UI collaborator changed. Nil fields
// are left alone.
type SettingsPatch struct {
	Direction     *Direction
	Level         *int
	LevelsToStore *int
	LevelsToTake  *int
}

// ApplySettings routes each present field through its own setter, so each
// one is persisted as it is written, then opens the gate so the change
// takes effect on the next tick.
func ApplySettings(u Configurable, p SettingsPatch) error {
	pol := u.Policy()
	if p.Direction != nil {
		if !p.Direction.Valid() {
			return ErrInvalidDirection
		}
		if err := pol.SetDirection(*p.Direction); err != nil {
			return &PersistError{UpgradeID: u.ID(), Key: KeyDirection, Err: err}
		}
	}
	if p.Level != nil {
		if err := pol.SetLevel(*p.Level); err != nil {
			return &PersistError{UpgradeID: u.ID(), Key: KeyLevel, Err: err}
		}
	}
	if p.LevelsToStore != nil {
		if err := pol.SetLevelsToStore(*p.LevelsToStore); err != nil {
			return &PersistError{UpgradeID: u.ID(), Key: KeyLevelsToStore, Err: err}
		}
	}
	if p.LevelsToTake != nil {
		if err := pol.SetLevelsToTake(*p.LevelsToTake); err != nil {
			return &PersistError{UpgradeID: u.ID(), Key: KeyLevelsToTake, Err: err}
		}
	}
	u.Cooldown().Open()
	return nil
}
