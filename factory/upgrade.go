/*
Package factory provides JSON to Go upgrade conversion.

PURPOSE:
  Converts JSON upgrade records into installed TickableUpgrades. Records
  are what the store keeps, what the API accepts and what snapshots carry,
  so all three paths build upgrades through this one factory.

JSON SCHEMA (upgrade.schema.json):
  {
    "id": "pump-1",
    "container_id": "backpack-1",
    "kind": "xp_pump",
    "settings": {
      "direction": "output",
      "level": 30,
      "levelsToStore": 1,
      "levelsToTake": 5
    }
  }

  Settings are optional; absent keys read as the kind's defaults.

PERSISTENCE:
  Install binds each record's save handler to UpgradeStore.SaveUpgrade, so
  every policy setter is persisted before it returns. With a nil store the
  records live in memory only.

USAGE:
  f := factory.NewUpgradeFactory(tuning.Default(), store)
  u, err := f.InstallJSON(ctx, container, factory.XPPumpJSON("pump-1", "backpack-1", "input", 10))

SEE ALSO:
  - generic/record.go: Record and SaveHandler
  - xp/pump.go, pump/upgrade.go: The kinds registered by default
*/
package factory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/pump"
	"github.com/warp/upgrade-engine/tuning"
	"github.com/warp/upgrade-engine/xp"
)

//go:embed upgrade.schema.json
var upgradeSchemaJSON string

var upgradeSchema = jsonschema.MustCompileString("upgrade.schema.json", upgradeSchemaJSON)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// UpgradeJSON is the JSON representation of an installed upgrade.
type UpgradeJSON struct {
	ID          string         `json:"id"`
	ContainerID string         `json:"container_id,omitempty"`
	Kind        string         `json:"kind"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// Builder creates an upgrade of one kind around a record.
type Builder func(id generic.UpgradeID, host generic.BufferProvider, record *generic.Record) generic.TickableUpgrade

// =============================================================================
// UPGRADE FACTORY
// =============================================================================

type UpgradeFactory struct {
	store    generic.UpgradeStore
	builders map[generic.UpgradeKind]Builder
	now      func() time.Time
}

// NewUpgradeFactory registers the experience and fluid pumps configured by t.
func NewUpgradeFactory(t tuning.Tuning, store generic.UpgradeStore) *UpgradeFactory {
	f := &UpgradeFactory{
		store:    store,
		builders: make(map[generic.UpgradeKind]Builder),
		now:      time.Now,
	}
	xpCfg := t.XPConfig()
	f.Register(xp.Kind, func(id generic.UpgradeID, host generic.BufferProvider, rec *generic.Record) generic.TickableUpgrade {
		return xp.NewPumpUpgrade(id, host, rec, xpCfg)
	})
	pumpCfg := t.PumpConfig()
	f.Register(pump.Kind, func(id generic.UpgradeID, host generic.BufferProvider, rec *generic.Record) generic.TickableUpgrade {
		return pump.NewUpgrade(id, host, rec, pumpCfg)
	})
	return f
}

func (f *UpgradeFactory) Register(kind generic.UpgradeKind, b Builder) {
	f.builders[kind] = b
}

// Kinds returns the registered kinds, sorted.
func (f *UpgradeFactory) Kinds() []generic.UpgradeKind {
	out := make([]generic.UpgradeKind, 0, len(f.builders))
	for k := range f.builders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parse validates raw JSON against the record schema.
func (f *UpgradeFactory) Parse(raw []byte) (UpgradeJSON, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return UpgradeJSON{}, &generic.RecordError{Reason: fmt.Sprintf("malformed json: %v", err)}
	}
	if err := upgradeSchema.Validate(doc); err != nil {
		var id string
		if m, ok := doc.(map[string]any); ok {
			id, _ = m["id"].(string)
		}
		return UpgradeJSON{}, &generic.RecordError{UpgradeID: generic.UpgradeID(id), Reason: err.Error()}
	}
	var uj UpgradeJSON
	if err := json.Unmarshal(raw, &uj); err != nil {
		return UpgradeJSON{}, &generic.RecordError{Reason: err.Error()}
	}
	return uj, nil
}

// Build creates the upgrade without installing or persisting it.
func (f *UpgradeFactory) Build(uj UpgradeJSON, host generic.BufferProvider) (generic.TickableUpgrade, error) {
	b, ok := f.builders[generic.UpgradeKind(uj.Kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", generic.ErrUnknownUpgradeKind, uj.Kind)
	}
	if uj.ID == "" {
		return nil, &generic.RecordError{Field: "id", Reason: "required"}
	}
	// NewRecord copies, so normalizing never touches the caller's map.
	rec := generic.NewRecord(uj.Settings, nil)
	if s, ok := rec.String(generic.KeyDirection); ok {
		d, err := generic.ParseDirection(s)
		if err != nil {
			return nil, &generic.RecordError{UpgradeID: generic.UpgradeID(uj.ID), Field: generic.KeyDirection, Reason: err.Error()}
		}
		if err := rec.SetString(generic.KeyDirection, string(d)); err != nil {
			return nil, err
		}
	}
	return b(generic.UpgradeID(uj.ID), host, rec), nil
}

// Install builds the upgrade, binds its record to the store, persists the
// initial record and installs it in c.
func (f *UpgradeFactory) Install(ctx context.Context, c *generic.Container, uj UpgradeJSON) (generic.TickableUpgrade, error) {
	uj.ContainerID = string(c.ID)
	u, err := f.Build(uj, c)
	if err != nil {
		return nil, err
	}
	f.bind(c.ID, u)
	if err := f.save(ctx, c.ID, u, u.Record().Fields()); err != nil {
		return nil, &generic.PersistError{UpgradeID: u.ID(), Key: "*", Err: err}
	}
	c.Install(u)
	return u, nil
}

// InstallJSON is Parse followed by Install.
func (f *UpgradeFactory) InstallJSON(ctx context.Context, c *generic.Container, raw string) (generic.TickableUpgrade, error) {
	uj, err := f.Parse([]byte(raw))
	if err != nil {
		return nil, err
	}
	return f.Install(ctx, c, uj)
}

// Restore rebuilds a stored record into c without writing it back.
func (f *UpgradeFactory) Restore(c *generic.Container, rec generic.UpgradeRecord) (generic.TickableUpgrade, error) {
	u, err := f.Build(UpgradeJSON{
		ID:          string(rec.ID),
		ContainerID: string(c.ID),
		Kind:        string(rec.Kind),
		Settings:    rec.Fields,
	}, c)
	if err != nil {
		return nil, err
	}
	f.bind(c.ID, u)
	c.Install(u)
	return u, nil
}

// Uninstall removes the upgrade from c and from the store.
func (f *UpgradeFactory) Uninstall(ctx context.Context, c *generic.Container, id generic.UpgradeID) error {
	if !c.Remove(id) {
		return fmt.Errorf("%w: %s", generic.ErrUpgradeNotFound, id)
	}
	if f.store == nil {
		return nil
	}
	return f.store.DeleteUpgrade(ctx, id)
}

// bind routes record saves to the store. Setters carry no context, so
// their saves run under context.Background.
func (f *UpgradeFactory) bind(cid generic.ContainerID, u generic.TickableUpgrade) {
	if f.store == nil {
		return
	}
	u.Record().SetSaveHandler(func(fields map[string]any) error {
		return f.save(context.Background(), cid, u, fields)
	})
}

func (f *UpgradeFactory) save(ctx context.Context, cid generic.ContainerID, u generic.TickableUpgrade, fields map[string]any) error {
	if f.store == nil {
		return nil
	}
	return f.store.SaveUpgrade(ctx, generic.UpgradeRecord{
		ID:          u.ID(),
		ContainerID: cid,
		Kind:        u.Kind(),
		Fields:      fields,
		UpdatedAt:   f.now().UTC(),
	})
}

// Encode is the inverse of Build.
func (f *UpgradeFactory) Encode(cid generic.ContainerID, u generic.TickableUpgrade) UpgradeJSON {
	return UpgradeJSON{
		ID:          string(u.ID()),
		ContainerID: string(cid),
		Kind:        string(u.Kind()),
		Settings:    u.Record().Fields(),
	}
}

// =============================================================================
// PRESETS
// =============================================================================

// XPPumpJSON returns a record for an experience pump.
func XPPumpJSON(id, containerID, direction string, level int) string {
	return fmt.Sprintf(`{"id":%q,"container_id":%q,"kind":%q,"settings":{"direction":%q,"level":%d}}`,
		id, containerID, xp.Kind, strings.ToLower(direction), level)
}

// FluidPumpJSON returns a record for a fluid pump.
func FluidPumpJSON(id, containerID, direction string) string {
	return fmt.Sprintf(`{"id":%q,"container_id":%q,"kind":%q,"settings":{"direction":%q}}`,
		id, containerID, pump.Kind, strings.ToLower(direction))
}
