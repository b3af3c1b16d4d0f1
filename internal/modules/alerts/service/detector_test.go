package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_monitor/internal/models"
)

var twoWindows = []models.PriceWindow{
	{DurationMs: 5_000, PctThreshold: 0.1, AbsThreshold: 0.5, Label: "5s"},
	{DurationMs: 30_000, PctThreshold: 0.5, AbsThreshold: 1.1, Label: "30s"},
}

func TestDetectorNoBaseNoEvent(t *testing.T) {
	d := NewDetector()
	_, ok := d.Observe("S", 100, 0, twoWindows)
	assert.False(t, ok)
	_, ok = d.Observe("S", 150, 4_999, twoWindows)
	assert.False(t, ok, "no point is old enough for the 5s window")
}

func TestDetectorSelectsLargestPct(t *testing.T) {
	d := NewDetector()
	d.Observe("S", 100.00, 0, twoWindows)
	d.Observe("S", 100.05, 26_000, twoWindows)

	// 5s: база 100.05 (ts 26000); 30s: база 100.00 (ts 0)
	ev, ok := d.Observe("S", 100.80, 31_000, twoWindows)
	require.True(t, ok)
	require.True(t, ev.Tripped)
	assert.Equal(t, "30s", ev.Window.Label)
	assert.Equal(t, 100.0, ev.BasePrice)
	assert.InDelta(t, 0.8, ev.Pct, 1e-9)
}

func TestDetectorQuietTrajectory(t *testing.T) {
	d := NewDetector()
	d.Observe("S", 100.00, 0, twoWindows)
	d.Observe("S", 100.02, 10_000, twoWindows)
	ev, ok := d.Observe("S", 100.05, 31_000, twoWindows)
	require.True(t, ok)
	assert.False(t, ev.Tripped)
}

func TestDetectorORSemantics(t *testing.T) {
	windows := []models.PriceWindow{{DurationMs: 1_000, PctThreshold: 50, AbsThreshold: 2, Label: "1s"}}
	d := NewDetector()
	d.Observe("S", 100, 0, windows)
	ev, ok := d.Observe("S", 102, 1_000, windows)
	require.True(t, ok)
	assert.True(t, ev.Tripped, "abs threshold alone trips the window")
}

func TestDetectorTieBreakPrefersShorter(t *testing.T) {
	windows := []models.PriceWindow{
		{DurationMs: 10_000, PctThreshold: 1, Label: "10s"},
		{DurationMs: 5_000, PctThreshold: 1, Label: "5s"},
	}
	d := NewDetector()
	d.Observe("S", 100, 0, windows)
	// обе базы это точка ts 0
	ev, ok := d.Observe("S", 102, 10_000, windows)
	require.True(t, ok)
	assert.Equal(t, "5s", ev.Window.Label)
}

func TestDetectorEvictsOldPoints(t *testing.T) {
	d := NewDetector()
	for ts := int64(0); ts <= 100_000; ts += 1_000 {
		d.Observe("S", 100, ts, twoWindows)
	}
	pts := d.Points("S")
	require.NotEmpty(t, pts)
	assert.GreaterOrEqual(t, pts[0].Ts, int64(100_000-35_000))
}
