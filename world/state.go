/*
Package world simulates the host the engine plugs into.

PURPOSE:
  The engine consumes a World (tick clock + actor locator) and, for the
  fluid pump, a ReservoirLocator. This package provides both over plain
  maps, plus the containers that get ticked.

TYPES:
  - State: The unsynchronized world. Implements generic.World and
           pump.ReservoirLocator. Only touched while World's lock is held.
  - World: The synchronized host. Step and Do are the only entry points.
  - Mob:   An entity without a resource pool.

ORDERING:
  Containers tick in ascending ID order; entities found in a region are
  returned in ascending ID order; reservoirs follow BlockPos.Neighbors.

SEE ALSO:
  - world.go: Locking, Step and Do
  - api/scheduler.go: Drives Step on a timer
*/
package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/pump"
)

// Mob is a non-player entity. It holds no experience, so upgrades ignore it.
type Mob struct {
	ID  generic.EntityID
	Pos generic.Vec3
}

func (m *Mob) EntityID() generic.EntityID { return m.ID }
func (m *Mob) Position() generic.Vec3     { return m.Pos }

var _ generic.Entity = (*Mob)(nil)

// =============================================================================
// STATE
// =============================================================================

type State struct {
	tick       generic.Tick
	entities   map[generic.EntityID]generic.Entity
	containers map[generic.ContainerID]*generic.Container
	reservoirs map[generic.BlockPos]*generic.TransferBuffer

	// now stamps CreatedAt on transfers.
	now func() time.Time
}

var (
	_ generic.World         = (*State)(nil)
	_ pump.ReservoirLocator = (*State)(nil)
)

func NewState() *State {
	return &State{
		entities:   make(map[generic.EntityID]generic.Entity),
		containers: make(map[generic.ContainerID]*generic.Container),
		reservoirs: make(map[generic.BlockPos]*generic.TransferBuffer),
		now:        time.Now,
	}
}

func (s *State) CurrentTick() generic.Tick { return s.tick }

// SetTick is used when restoring a snapshot.
func (s *State) SetTick(t generic.Tick) { s.tick = t }

// SetClock overrides the CreatedAt clock (tests).
func (s *State) SetClock(now func() time.Time) { s.now = now }

// =============================================================================
// ENTITIES
// =============================================================================

func (s *State) AddEntity(e generic.Entity) {
	s.entities[e.EntityID()] = e
}

// RemoveEntity also takes the entity's containers off its back.
func (s *State) RemoveEntity(id generic.EntityID) bool {
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	for _, c := range s.containers {
		if h := c.Holder(); h != nil && h.EntityID() == id {
			c.SetHolder(nil)
		}
	}
	return true
}

func (s *State) Entity(id generic.EntityID) (generic.Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrEntityNotFound, id)
	}
	return e, nil
}

// Actor resolves an entity that holds a resource pool.
func (s *State) Actor(id generic.EntityID) (generic.Actor, error) {
	e, err := s.Entity(id)
	if err != nil {
		return nil, err
	}
	a, ok := e.(generic.Actor)
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrNotAnActor, id)
	}
	return a, nil
}

// Entities returns every entity sorted by ID.
func (s *State) Entities() []generic.Entity {
	out := make([]generic.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sortEntities(out)
	return out
}

func (s *State) FindEntitiesInRegion(r generic.Region) []generic.Entity {
	var out []generic.Entity
	for _, e := range s.entities {
		if r.Contains(e.Position()) {
			out = append(out, e)
		}
	}
	sortEntities(out)
	return out
}

func sortEntities(es []generic.Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].EntityID() < es[j].EntityID() })
}

// =============================================================================
// CONTAINERS
// =============================================================================

func (s *State) AddContainer(c *generic.Container) {
	s.containers[c.ID] = c
}

func (s *State) RemoveContainer(id generic.ContainerID) bool {
	if _, ok := s.containers[id]; !ok {
		return false
	}
	delete(s.containers, id)
	return true
}

func (s *State) Container(id generic.ContainerID) (*generic.Container, error) {
	c, ok := s.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrContainerNotFound, id)
	}
	return c, nil
}

// Containers returns every container sorted by ID.
func (s *State) Containers() []*generic.Container {
	out := make([]*generic.Container, 0, len(s.containers))
	for _, c := range s.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindUpgrade searches every container for an upgrade ID.
func (s *State) FindUpgrade(id generic.UpgradeID) (*generic.Container, generic.TickableUpgrade, error) {
	for _, c := range s.Containers() {
		if u, ok := c.Upgrade(id); ok {
			return c, u, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", generic.ErrUpgradeNotFound, id)
}

// ResetCooldowns opens every gate in the world.
func (s *State) ResetCooldowns() {
	for _, c := range s.containers {
		c.ResetCooldowns()
	}
}

// =============================================================================
// RESERVOIRS
// =============================================================================

func (s *State) AddReservoir(pos generic.BlockPos, b *generic.TransferBuffer) {
	s.reservoirs[pos] = b
}

func (s *State) Reservoir(pos generic.BlockPos) (*generic.TransferBuffer, bool) {
	b, ok := s.reservoirs[pos]
	return b, ok
}

// Reservoirs returns every reservoir sorted by position.
func (s *State) Reservoirs() []pump.Reservoir {
	out := make([]pump.Reservoir, 0, len(s.reservoirs))
	for p, b := range s.reservoirs {
		out = append(out, pump.Reservoir{Pos: p, Buffer: b})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Pos, out[j].Pos
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}

func (s *State) ReservoirsAround(pos generic.BlockPos) []pump.Reservoir {
	var out []pump.Reservoir
	for _, n := range pos.Neighbors() {
		if b, ok := s.reservoirs[n]; ok {
			out = append(out, pump.Reservoir{Pos: n, Buffer: b})
		}
	}
	return out
}

// =============================================================================
// ADVANCE
// =============================================================================

// Advance moves the clock forward one tick and ticks every container.
// Worn containers follow their holder before ticking.
func (s *State) Advance() []generic.Transfer {
	s.tick++
	var out []generic.Transfer
	for _, c := range s.Containers() {
		if h := c.Holder(); h != nil {
			c.Pos = generic.BlockPosOf(h.Position())
		}
		for _, t := range c.Tick(s) {
			s.stamp(&t, "")
			out = append(out, t)
		}
	}
	return out
}

// StampManual fills in the ledger fields of a user-triggered transfer.
// An empty key gets a unique one, so unkeyed manual actions never collide.
func (s *State) StampManual(t *generic.Transfer, containerID generic.ContainerID, key string) {
	t.ContainerID = containerID
	s.stamp(t, key)
	if key == "" {
		t.IdempotencyKey = "manual/" + string(t.ID)
	}
}

func (s *State) stamp(t *generic.Transfer, key string) {
	t.ID = generic.TransferID(uuid.NewString())
	t.Tick = s.tick
	t.CreatedAt = s.now().UTC()
	if key == "" {
		key = fmt.Sprintf("%s/%s/%s/%d", t.ContainerID, t.UpgradeID, t.EntityID, t.Tick)
	}
	t.IdempotencyKey = key
}
