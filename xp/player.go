package xp

import (
	"github.com/shopspring/decimal"

	"github.com/warp/upgrade-engine/generic"
)

// Player is the simulated external resource pool. Level and progress are
// always derived from the total, so the three views can never disagree.
type Player struct {
	ID   generic.EntityID
	Name string
	Pos  generic.Vec3

	total int64
}

var _ generic.Actor = (*Player)(nil)

func NewPlayer(id generic.EntityID, name string, pos generic.Vec3) *Player {
	return &Player{ID: id, Name: name, Pos: pos}
}

// NewPlayerAtLevel starts the player exactly at the beginning of level.
func NewPlayerAtLevel(id generic.EntityID, pos generic.Vec3, level int) *Player {
	p := NewPlayer(id, string(id), pos)
	p.total = AmountForLevel(level)
	return p
}

func (p *Player) EntityID() generic.EntityID { return p.ID }
func (p *Player) Position() generic.Vec3     { return p.Pos }
func (p *Player) SetPosition(v generic.Vec3) { p.Pos = v }

func (p *Player) TotalPoints() int64 { return p.total }

// SetTotalPoints overwrites the pool, clamped at zero.
func (p *Player) SetTotalPoints(points int64) { p.total = max(points, 0) }

func (p *Player) Level() int { return LevelForAmount(p.total) }

func (p *Player) Progress() decimal.Decimal {
	level := p.Level()
	into := p.total - AmountForLevel(level)
	if into <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(into).Div(decimal.NewFromInt(PointsToNextLevel(level)))
}

// AdjustPoints grants or takes points. The pool never goes below zero.
func (p *Player) AdjustPoints(delta int64) {
	p.total = max(p.total+delta, 0)
}
