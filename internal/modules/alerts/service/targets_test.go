package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
)

func TestInBand(t *testing.T) {
	above := models.TargetRule{TargetPrice: 100, Direction: models.TargetAbove}
	assert.True(t, InBand(above, 100))
	assert.True(t, InBand(above, 1000))
	assert.False(t, InBand(above, 99.99))

	above.RangePercent = 0.01
	assert.True(t, InBand(above, 101))
	assert.False(t, InBand(above, 101.01))

	below := models.TargetRule{TargetPrice: 100, Direction: models.TargetBelow, RangePercent: 0.02}
	assert.True(t, InBand(below, 98))
	assert.False(t, InBand(below, 97.9))
	assert.False(t, InBand(below, 100.1))
}

func TestTargetsIntervalAndOnce(t *testing.T) {
	tg := NewTargets(zap.NewNop())
	rules := []models.TargetRule{
		{ID: "repeat", Symbol: "ETH-USDT", TargetPrice: 2000, Direction: models.TargetAbove, NotifyIntervalSec: 60},
		{ID: "once", Symbol: "ETH-USDT", TargetPrice: 1990, Direction: models.TargetAbove, NotifyOnce: true},
		{ID: "other", Symbol: "BTC-USDT", TargetPrice: 1, Direction: models.TargetAbove},
	}

	hits := tg.Evaluate("ETH-USDT", 2001, 1_000, rules)
	require.Len(t, hits, 2)
	assert.True(t, hits[1].Once)

	assert.Empty(t, tg.Evaluate("ETH-USDT", 2002, 30_000, rules))

	hits = tg.Evaluate("ETH-USDT", 2002, 61_000, rules)
	require.Len(t, hits, 1)
	assert.Equal(t, "repeat", hits[0].Rule.ID)
	assert.Equal(t, int64(61_000), tg.LastNotify(rules[0]))
}

func TestTargetsSkipMalformedAndDisabled(t *testing.T) {
	off := false
	tg := NewTargets(zap.NewNop())
	rules := []models.TargetRule{
		{ID: "neg", Symbol: "S", TargetPrice: -1, Direction: models.TargetAbove},
		{ID: "dir", Symbol: "S", TargetPrice: 1, Direction: "up"},
		{ID: "off", Symbol: "S", TargetPrice: 1, Direction: models.TargetAbove, Enabled: &off},
		{ID: "ok", Symbol: "S", TargetPrice: 1, Direction: models.TargetAbove},
	}
	hits := tg.Evaluate("S", 5, 1, rules)
	require.Len(t, hits, 1)
	assert.Equal(t, "ok", hits[0].Rule.ID)
}

func TestTargetsSyncAndRestore(t *testing.T) {
	tg := NewTargets(zap.NewNop())
	once := models.TargetRule{ID: "once", Symbol: "S", TargetPrice: 1, Direction: models.TargetAbove, NotifyOnce: true}

	require.Len(t, tg.Evaluate("S", 2, 1, []models.TargetRule{once}), 1)
	assert.Empty(t, tg.Evaluate("S", 2, 2, []models.TargetRule{once}))

	tg.Restore(once)
	require.Len(t, tg.Evaluate("S", 2, 3, []models.TargetRule{once}), 1)

	tg.Sync(nil)
	assert.Zero(t, tg.LastNotify(once))
}
