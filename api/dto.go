/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  World:      WorldDTO, StepRequest, StepResponse
  Players:    PlayerDTO, CreatePlayerRequest, PositionRequest, ExperienceRequest
  Containers: ContainerDTO, BufferDTO
  Upgrades:   UpgradeDTO, PatchUpgradeRequest, ActionRequest
  Ledger:     TransferDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/upgrade.go: UpgradeJSON (install request body)
*/
package api

import (
	"time"

	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/world"
	"github.com/warp/upgrade-engine/xp"
)

// =============================================================================
// WORLD
// =============================================================================

type WorldDTO struct {
	Tick       uint64         `json:"tick"`
	Scenario   string         `json:"scenario,omitempty"`
	Players    []PlayerDTO    `json:"players"`
	Mobs       []MobDTO       `json:"mobs"`
	Containers []ContainerDTO `json:"containers"`
}

type StepRequest struct {
	Ticks int `json:"ticks"`
}

type StepResponse struct {
	Tick      uint64        `json:"tick"`
	Transfers []TransferDTO `json:"transfers"`
}

// =============================================================================
// PLAYERS
// =============================================================================

type PlayerDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Pos         [3]float64 `json:"pos"`
	TotalPoints int64      `json:"total_points"`
	Level       int        `json:"level"`
	Progress    string     `json:"progress"`
}

type MobDTO struct {
	ID  string     `json:"id"`
	Pos [3]float64 `json:"pos"`
}

// CreatePlayerRequest creates a player. Level wins over TotalPoints when set.
type CreatePlayerRequest struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Pos         [3]float64 `json:"pos"`
	Level       *int       `json:"level,omitempty"`
	TotalPoints int64      `json:"total_points"`
}

type PositionRequest struct {
	Pos [3]float64 `json:"pos"`
}

// ExperienceRequest either sets a level or adjusts points.
type ExperienceRequest struct {
	Level       *int  `json:"level,omitempty"`
	DeltaPoints int64 `json:"delta_points"`
}

// =============================================================================
// CONTAINERS
// =============================================================================

type BufferDTO struct {
	Tag       string `json:"tag"`
	Resource  string `json:"resource,omitempty"`
	Stored    int64  `json:"stored"`
	Capacity  int64  `json:"capacity"`
	FillRatio string `json:"fill_ratio"`
}

type ContainerDTO struct {
	ID       string       `json:"id"`
	Pos      [3]int       `json:"pos"`
	Holder   string       `json:"holder,omitempty"`
	Buffers  []BufferDTO  `json:"buffers"`
	Upgrades []UpgradeDTO `json:"upgrades"`
}

// =============================================================================
// UPGRADES
// =============================================================================

type SettingsDTO struct {
	Direction     string `json:"direction"`
	Level         int    `json:"level"`
	LevelsToStore int    `json:"levelsToStore"`
	LevelsToTake  int    `json:"levelsToTake"`
}

type UpgradeDTO struct {
	ID                string       `json:"id"`
	ContainerID       string       `json:"container_id"`
	Kind              string       `json:"kind"`
	Settings          *SettingsDTO `json:"settings,omitempty"`
	CooldownRemaining int          `json:"cooldown_remaining"`
	Actions           []string     `json:"actions,omitempty"`
}

// PatchUpgradeRequest carries only the fields the UI changed.
type PatchUpgradeRequest struct {
	Direction     *string `json:"direction,omitempty"`
	Level         *int    `json:"level,omitempty"`
	LevelsToStore *int    `json:"levelsToStore,omitempty"`
	LevelsToTake  *int    `json:"levelsToTake,omitempty"`
}

type ActionRequest struct {
	PlayerID string `json:"player_id"`
}

// =============================================================================
// LEDGER
// =============================================================================

type TransferDTO struct {
	ID             string `json:"id"`
	ContainerID    string `json:"container_id"`
	UpgradeID      string `json:"upgrade_id"`
	EntityID       string `json:"entity_id"`
	Resource       string `json:"resource,omitempty"`
	Direction      string `json:"direction"`
	Points         int64  `json:"points"`
	Units          int64  `json:"units"`
	Manual         bool   `json:"manual"`
	Tick           uint64 `json:"tick"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPlayerDTO(p *xp.Player) PlayerDTO {
	return PlayerDTO{
		ID:          string(p.ID),
		Name:        p.Name,
		Pos:         [3]float64{p.Pos.X, p.Pos.Y, p.Pos.Z},
		TotalPoints: p.TotalPoints(),
		Level:       p.Level(),
		Progress:    p.Progress().StringFixed(3),
	}
}

func toMobDTO(m *world.Mob) MobDTO {
	return MobDTO{ID: string(m.ID), Pos: [3]float64{m.Pos.X, m.Pos.Y, m.Pos.Z}}
}

func toUpgradeDTO(cid generic.ContainerID, u generic.TickableUpgrade) UpgradeDTO {
	dto := UpgradeDTO{
		ID:                string(u.ID()),
		ContainerID:       string(cid),
		Kind:              string(u.Kind()),
		CooldownRemaining: u.Cooldown().Remaining(),
	}
	if c, ok := u.(generic.Configurable); ok {
		s := c.Policy().Settings()
		dto.Settings = &SettingsDTO{
			Direction:     string(s.Direction),
			Level:         s.Level,
			LevelsToStore: s.LevelsToStore,
			LevelsToTake:  s.LevelsToTake,
		}
	}
	if _, ok := u.(generic.ManualTransfers); ok && u.Kind() == xp.Kind {
		for _, a := range xp.Actions {
			dto.Actions = append(dto.Actions, string(a))
		}
	}
	return dto
}

func toContainerDTO(c *generic.Container) ContainerDTO {
	dto := ContainerDTO{
		ID:       string(c.ID),
		Pos:      [3]int{c.Pos.X, c.Pos.Y, c.Pos.Z},
		Buffers:  []BufferDTO{},
		Upgrades: []UpgradeDTO{},
	}
	if h := c.Holder(); h != nil {
		dto.Holder = string(h.EntityID())
	}
	for _, tag := range c.BufferTags() {
		b, _ := c.Buffer(tag).Get()
		bd := BufferDTO{
			Tag:       tag,
			Stored:    b.Stored(),
			Capacity:  b.Capacity(),
			FillRatio: b.FillRatio().StringFixed(3),
		}
		if r := b.Resource(); r != nil {
			bd.Resource = r.ResourceID()
		}
		dto.Buffers = append(dto.Buffers, bd)
	}
	for _, u := range c.Upgrades() {
		dto.Upgrades = append(dto.Upgrades, toUpgradeDTO(c.ID, u))
	}
	return dto
}

func toTransferDTO(t generic.Transfer) TransferDTO {
	dto := TransferDTO{
		ID:             string(t.ID),
		ContainerID:    string(t.ContainerID),
		UpgradeID:      string(t.UpgradeID),
		EntityID:       string(t.EntityID),
		Direction:      string(t.Direction),
		Points:         t.Points,
		Units:          t.Units,
		Manual:         t.Manual,
		Tick:           uint64(t.Tick),
		IdempotencyKey: t.IdempotencyKey,
	}
	if t.ResourceType != nil {
		dto.Resource = t.ResourceType.ResourceID()
	}
	if !t.CreatedAt.IsZero() {
		dto.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransferDTOs(ts []generic.Transfer) []TransferDTO {
	out := make([]TransferDTO, len(ts))
	for i, t := range ts {
		out[i] = toTransferDTO(t)
	}
	return out
}

type ActionResponse struct {
	Action   string       `json:"action"`
	Transfer *TransferDTO `json:"transfer,omitempty"`
	Player   PlayerDTO    `json:"player"`
}

type SnapshotResponse struct {
	Path string `json:"path"`
	Tick uint64 `json:"tick"`
}
