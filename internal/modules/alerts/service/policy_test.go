package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_monitor/internal/helper"
	"market_monitor/internal/models"
)

func hiOnly(hi float64, repeatMs int64) Thresholds {
	return PnLThresholds(models.PnLConfig{HiPct: hi, LoPct: -100, RepeatIntervalMs: repeatMs, EnableHi: true})
}

func pct(v float64) Metric { return Metric{Pct: &v} }

func TestPolicyHysteresisSequence(t *testing.T) {
	p := NewPolicy()
	th := hiOnly(3, 5_000)

	seq := []float64{2.9, 3.1, 3.5, 4.2, 3.3, 2.4, 3.1}
	var fired []int
	var reasons []models.FireReason
	for i, v := range seq {
		d := p.Evaluate("ETH-USDT:long", pct(v), th, int64(i+1)*10_000)
		if d.Fire {
			fired = append(fired, i)
			reasons = append(reasons, d.Reason)
		}
	}
	assert.Equal(t, []int{1, 3, 6}, fired)
	assert.Equal(t, []models.FireReason{models.FireEnter, models.FireContinuation, models.FireEnter}, reasons)
}

func TestPolicyBoundaries(t *testing.T) {
	p := NewPolicy()
	th := hiOnly(3, 0)

	d := p.Evaluate("k", pct(3), th, 1)
	require.True(t, d.Fire, "exactly hiPct triggers")

	// (2.5, 3) ни входа, ни выхода
	p.Evaluate("k", pct(2.7), th, 2)
	st, _ := p.State("k")
	assert.True(t, st.AboveHi)

	// ровно 2.5 ещё не выход
	p.Evaluate("k", pct(2.5), th, 3)
	st, _ = p.State("k")
	assert.True(t, st.AboveHi)

	p.Evaluate("k", pct(2.49), th, 4)
	st, _ = p.State("k")
	assert.False(t, st.AboveHi)
}

func TestPolicyRepeatGate(t *testing.T) {
	p := NewPolicy()
	th := hiOnly(3, 60_000)

	require.True(t, p.Evaluate("k", pct(3.2), th, 1_000).Fire)
	// выход и повторный вход внутри интервала подавлены
	p.Evaluate("k", pct(1), th, 2_000)
	d := p.Evaluate("k", pct(3.3), th, 3_000)
	assert.False(t, d.Fire)
	assert.True(t, d.Suppressed)
	st, _ := p.State("k")
	assert.False(t, st.AboveHi, "suppressed fire leaves state untouched")
	assert.Equal(t, int64(1_000), st.LastNotifyTs)

	assert.True(t, p.Evaluate("k", pct(3.3), th, 61_000).Fire)
}

func TestPolicyAtMostOnePerRepeatInterval(t *testing.T) {
	p := NewPolicy()
	th := hiOnly(1, 10_000)
	last := int64(-1)
	for i := 0; i < 500; i++ {
		v := float64(i%7) - 1 + float64(i)/50
		now := int64(i) * 700
		if p.Evaluate("k", pct(v), th, now).Fire {
			if last >= 0 {
				require.GreaterOrEqual(t, now-last, int64(10_000))
			}
			last = now
		}
	}
}

func TestPolicyLoSideAndExclusivity(t *testing.T) {
	p := NewPolicy()
	th := PnLThresholds(models.PnLConfig{HiPct: 5, LoPct: -5, EnableHi: true, EnableLo: true})

	d := p.Evaluate("k", pct(-5), th, 1)
	require.True(t, d.Fire)
	assert.Equal(t, models.BandLo, d.Band)

	d = p.Evaluate("k", pct(-6.1), th, 2)
	assert.True(t, d.Fire)
	assert.Equal(t, models.FireContinuation, d.Reason)

	d = p.Evaluate("k", pct(6), th, 3)
	require.True(t, d.Fire)
	assert.Equal(t, models.BandHi, d.Band)
	st, _ := p.State("k")
	assert.True(t, st.AboveHi)
	assert.False(t, st.BelowLo)
}

func TestPolicyAmountCriteria(t *testing.T) {
	p := NewPolicy()
	th := PnLThresholds(models.PnLConfig{HiPct: 50, HiAmt: helper.Float64Ptr(100), LoPct: -50, EnableHi: true})

	d := p.Evaluate("k", M(10, 100), th, 1)
	require.True(t, d.Fire, "amount alone enters the band")

	// pct ниже hi-0.5, но сумма ещё в полосе: выхода нет
	p.Evaluate("k", M(1, 99.8), th, 2)
	st, _ := p.State("k")
	assert.True(t, st.AboveHi)

	d = p.Evaluate("k", M(1, 101), th, 3)
	assert.True(t, d.Fire)
	assert.Equal(t, models.FireContinuation, d.Reason)
}

func TestWindowThresholdsScale(t *testing.T) {
	th := WindowThresholds(models.PriceWindow{DurationMs: 60_000, PctThreshold: 2}, 1000)
	require.NotNil(t, th.HiPct)
	assert.Equal(t, 2.0, *th.HiPct)
	assert.Equal(t, -2.0, *th.LoPct)
	assert.Equal(t, 1.0, th.PctGap)
	assert.Equal(t, 2.0, th.PctStep)
	assert.Nil(t, th.HiAmt)
	assert.Equal(t, int64(1000), th.RepeatIntervalMs)
}
