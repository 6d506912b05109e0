/*
container.go - Inventory-bearing host of buffers and upgrades

PURPOSE:
  A Container owns its buffers and the ordered list of installed upgrades.
  Upgrades resolve buffers through Buffer(tag) each tick and never keep
  them. Tick decrements every upgrade's cooldown gate, then dispatches the
  tick to each upgrade in install order.

WORN VS PLACED:
  A container carried by an entity passes that entity to its upgrades; a
  placed container passes nil and the upgrade scans the world around Pos.

CONCURRENCY:
  Not safe for concurrent use. The world host serializes ticks and manual
  actions (see world.World.Do).
*/
package generic

import "sort"

const (
	// TagFluid is the tag of a container's fluid tank.
	TagFluid = "fluid"
)

type Container struct {
	ID  ContainerID
	Pos BlockPos

	holder   Entity
	buffers  map[string]*TransferBuffer
	upgrades []TickableUpgrade
}

func NewContainer(id ContainerID, pos BlockPos) *Container {
	return &Container{
		ID:      id,
		Pos:     pos,
		buffers: make(map[string]*TransferBuffer),
	}
}

// =============================================================================
// BUFFERS
// =============================================================================

// AttachBuffer creates (or replaces) the buffer under tag.
func (c *Container) AttachBuffer(tag string, capacity int64) *TransferBuffer {
	b := NewTransferBuffer(capacity)
	c.buffers[tag] = b
	return b
}

// PutBuffer installs an existing buffer, e.g. one restored from a store.
func (c *Container) PutBuffer(tag string, b *TransferBuffer) {
	c.buffers[tag] = b
}

func (c *Container) DetachBuffer(tag string) {
	delete(c.buffers, tag)
}

func (c *Container) Buffer(tag string) Capability[*TransferBuffer] {
	if b, ok := c.buffers[tag]; ok && b != nil {
		return Some(b)
	}
	return None[*TransferBuffer]()
}

// BufferTags returns the attached tags, sorted.
func (c *Container) BufferTags() []string {
	tags := make([]string, 0, len(c.buffers))
	for t := range c.buffers {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// =============================================================================
// UPGRADES
// =============================================================================

// Install appends u, replacing any upgrade with the same ID in place.
func (c *Container) Install(u TickableUpgrade) {
	for i, existing := range c.upgrades {
		if existing.ID() == u.ID() {
			c.upgrades[i] = u
			return
		}
	}
	c.upgrades = append(c.upgrades, u)
}

func (c *Container) Remove(id UpgradeID) bool {
	for i, u := range c.upgrades {
		if u.ID() == id {
			c.upgrades = append(c.upgrades[:i], c.upgrades[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Container) Upgrade(id UpgradeID) (TickableUpgrade, bool) {
	for _, u := range c.upgrades {
		if u.ID() == id {
			return u, true
		}
	}
	return nil, false
}

func (c *Container) Upgrades() []TickableUpgrade {
	out := make([]TickableUpgrade, len(c.upgrades))
	copy(out, c.upgrades)
	return out
}

// =============================================================================
// HOLDER
// =============================================================================

func (c *Container) SetHolder(e Entity) { c.holder = e }
func (c *Container) Holder() Entity     { return c.holder }

// =============================================================================
// TICK
// =============================================================================

// Tick delivers one world tick to every installed upgrade.
func (c *Container) Tick(world World) []Transfer {
	var out []Transfer
	for _, u := range c.upgrades {
		u.Cooldown().Tick()
		for _, t := range u.Tick(c.holder, world, c.Pos) {
			t.ContainerID = c.ID
			out = append(out, t)
		}
	}
	return out
}

// ResetCooldowns opens every gate. Called on world load and unload so no
// accumulated debt survives the boundary.
func (c *Container) ResetCooldowns() {
	for _, u := range c.upgrades {
		u.Cooldown().Open()
	}
}
