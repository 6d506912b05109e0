package xp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/xp"
)

func TestAmountForLevel_KnownValues(t *testing.T) {
	cases := map[int]int64{
		-3: 0,
		0:  0,
		1:  7,
		10: 160,
		15: 315,
		16: 352,
		17: 394,
		30: 1395,
		31: 1507,
		32: 1628,
	}
	for level, want := range cases {
		assert.Equal(t, want, xp.AmountForLevel(level), "level %d", level)
	}
}

func TestLevelForAmount_InvertsAmountForLevel(t *testing.T) {
	for level := 0; level <= 200; level++ {
		at := xp.AmountForLevel(level)
		assert.Equal(t, level, xp.LevelForAmount(at), "exactly at level %d", level)
		if level > 0 {
			assert.Equal(t, level-1, xp.LevelForAmount(at-1), "one point short of level %d", level)
		}
	}
}

func TestPointsToNextLevel_MatchesCurve(t *testing.T) {
	for level := 0; level <= 100; level++ {
		assert.Equal(t, xp.AmountForLevel(level+1)-xp.AmountForLevel(level), xp.PointsToNextLevel(level), "level %d", level)
	}
}

func TestAmountForLevel_AllLevelsDoesNotOverflow(t *testing.T) {
	amount := xp.AmountForLevel(xp.AllLevels)
	assert.Greater(t, amount, int64(0))
	assert.Greater(t, xp.PointsToLiquid(amount), amount)
}

func TestPlayer_DerivedViewsAgree(t *testing.T) {
	p := xp.NewPlayerAtLevel("steve", generic.Vec3{}, 15)
	assert.Equal(t, 15, p.Level())
	assert.True(t, p.Progress().IsZero())

	// Half way through level 15 (37 points wide)
	p.AdjustPoints(18)
	assert.Equal(t, 15, p.Level())
	assert.Equal(t, "0.486", p.Progress().StringFixed(3))

	p.AdjustPoints(-10000)
	assert.Equal(t, int64(0), p.TotalPoints())
	assert.Equal(t, 0, p.Level())
}

func TestConversion_Experience(t *testing.T) {
	assert.Equal(t, int64(200), xp.PointsToLiquid(10))
	assert.Equal(t, int64(9), xp.LiquidToPoints(199))
}
