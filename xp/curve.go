package xp

import (
	"sort"

	"github.com/warp/upgrade-engine/generic"
)

// Curve is the vanilla experience curve.
//
//	level  0..16  L² + 6L
//	level 17..31  2.5L² − 40.5L + 360
//	level 32+     4.5L² − 162.5L + 2220
//
// The fractional forms are evaluated as integer halves, which is exact
// because the numerators are always even.
type Curve struct{}

var _ generic.LevelCurve = Curve{}

// DefaultCurve is shared by players and pumps.
var DefaultCurve = Curve{}

func (Curve) AmountForLevel(level int) int64 {
	return AmountForLevel(level)
}

func (Curve) LevelForAmount(points int64) int {
	return LevelForAmount(points)
}

func AmountForLevel(level int) int64 {
	if level <= 0 {
		return 0
	}
	l := int64(level)
	switch {
	case level <= 16:
		return l*l + 6*l
	case level <= 31:
		return (5*l*l - 81*l + 720) / 2
	default:
		return (9*l*l - 325*l + 4440) / 2
	}
}

// maxLevel bounds the level search so AmountForLevel stays far from overflow.
const maxLevel = 1 << 24

// LevelForAmount returns the highest level whose cumulative amount is <= points.
func LevelForAmount(points int64) int {
	if points <= 0 {
		return 0
	}
	// First level that needs more than points, minus one.
	n := sort.Search(maxLevel, func(l int) bool { return AmountForLevel(l) > points })
	return n - 1
}

// PointsToNextLevel is the width of level L on the bar.
func PointsToNextLevel(level int) int64 {
	l := int64(max(level, 0))
	switch {
	case level >= 31:
		return 9*l - 158
	case level >= 16:
		return 5*l - 38
	default:
		return 2*l + 7
	}
}
