package service

import (
	"market_monitor/internal/models"
)

const (
	// DefaultExitGap гистерезис выхода из полосы, в единицах метрики.
	DefaultExitGap = 0.5
	// DefaultStep шаг продолжения внутри полосы.
	DefaultStep = 1.0
)

// Thresholds пороги одного вызова политики. nil отключает критерий.
type Thresholds struct {
	HiPct, LoPct *float64
	HiAmt, LoAmt *float64

	RepeatIntervalMs int64
	EnableHi         bool
	EnableLo         bool

	PctGap, PctStep float64
	AmtGap, AmtStep float64
}

// PnLThresholds пороги ROE/PnL из документа с константами 0.5 и 1.0.
func PnLThresholds(cfg models.PnLConfig) Thresholds {
	hi, lo := cfg.HiPct, cfg.LoPct
	return Thresholds{
		HiPct:            &hi,
		LoPct:            &lo,
		HiAmt:            cfg.HiAmt,
		LoAmt:            cfg.LoAmt,
		RepeatIntervalMs: cfg.RepeatIntervalMs,
		EnableHi:         cfg.EnableHi,
		EnableLo:         cfg.EnableLo,
		PctGap:           DefaultExitGap,
		PctStep:          DefaultStep,
		AmtGap:           DefaultExitGap,
		AmtStep:          DefaultStep,
	}
}

// WindowThresholds пороги окна детектора: полоса симметрична, гистерезис и шаг
// масштабируются порогом окна (gap = порог/2, step = порог).
func WindowThresholds(w models.PriceWindow, minNotifyIntervalMs int64) Thresholds {
	th := Thresholds{
		RepeatIntervalMs: minNotifyIntervalMs,
		EnableHi:         true,
		EnableLo:         true,
	}
	if w.PctThreshold > 0 {
		hi, lo := w.PctThreshold, -w.PctThreshold
		th.HiPct, th.LoPct = &hi, &lo
		th.PctGap, th.PctStep = w.PctThreshold/2, w.PctThreshold
	}
	if w.AbsThreshold > 0 {
		hi, lo := w.AbsThreshold, -w.AbsThreshold
		th.HiAmt, th.LoAmt = &hi, &lo
		th.AmtGap, th.AmtStep = w.AbsThreshold/2, w.AbsThreshold
	}
	return th
}

// Metric пара (pct, amt); любая из величин может отсутствовать.
type Metric struct {
	Pct *float64
	Amt *float64
}

func M(pct, amt float64) Metric { return Metric{Pct: &pct, Amt: &amt} }

// Decision итог одного вызова.
type Decision struct {
	Fire       bool
	Band       models.Band
	Reason     models.FireReason
	Suppressed bool
	Exited     models.Band
}

// Policy таблица состояний по субъектам. Один писатель, без блокировок.
type Policy struct {
	states map[string]*models.ThresholdState
}

func NewPolicy() *Policy {
	return &Policy{states: make(map[string]*models.ThresholdState)}
}

// State копия состояния субъекта.
func (p *Policy) State(key string) (models.ThresholdState, bool) {
	st, ok := p.states[key]
	if !ok {
		return models.ThresholdState{}, false
	}
	return *st, true
}

func (p *Policy) Forget(key string) { delete(p.states, key) }

// Keys субъекты, по которым есть состояние.
func (p *Policy) Keys() []string {
	out := make([]string, 0, len(p.states))
	for k := range p.states {
		out = append(out, k)
	}
	return out
}

func (p *Policy) state(key string) *models.ThresholdState {
	st, ok := p.states[key]
	if !ok {
		st = &models.ThresholdState{}
		p.states[key] = st
	}
	return st
}

// Relax только выход из полос, без новых срабатываний.
func (p *Policy) Relax(key string, m Metric, th Thresholds) models.Band {
	st, ok := p.states[key]
	if !ok {
		return models.BandNone
	}
	return applyExits(st, m, th)
}

// Evaluate выход из полос, затем вход или продолжение, затем repeat gate.
// Подавленное срабатывание состояние не меняет.
func (p *Policy) Evaluate(key string, m Metric, th Thresholds, nowMs int64) Decision {
	st := p.state(key)
	d := Decision{Exited: applyExits(st, m, th)}

	band, reason := models.BandNone, models.FireReason("")
	if th.EnableHi {
		switch {
		case !st.AboveHi && enterHi(m, th):
			band, reason = models.BandHi, models.FireEnter
		case st.AboveHi && continueHi(st, m, th):
			band, reason = models.BandHi, models.FireContinuation
		}
	}
	if band == models.BandNone && th.EnableLo {
		switch {
		case !st.BelowLo && enterLo(m, th):
			band, reason = models.BandLo, models.FireEnter
		case st.BelowLo && continueLo(st, m, th):
			band, reason = models.BandLo, models.FireContinuation
		}
	}
	if band == models.BandNone {
		return d
	}

	if st.LastNotifyTs != 0 && nowMs-st.LastNotifyTs < th.RepeatIntervalMs {
		d.Suppressed = true
		return d
	}

	if band == models.BandHi {
		st.AboveHi, st.BelowLo = true, false
	} else {
		st.BelowLo, st.AboveHi = true, false
	}
	st.LastNotifyTs = nowMs
	st.LastNotifyRate = copyPtr(m.Pct)
	st.LastNotifyAmount = copyPtr(m.Amt)

	d.Fire, d.Band, d.Reason = true, band, reason
	return d
}

func applyExits(st *models.ThresholdState, m Metric, th Thresholds) models.Band {
	exited := models.BandNone
	if st.AboveHi && exitHi(m, th) {
		st.AboveHi = false
		exited = models.BandHi
	}
	if st.BelowLo && exitLo(m, th) {
		st.BelowLo = false
		exited = models.BandLo
	}
	return exited
}

func enterHi(m Metric, th Thresholds) bool {
	return (th.HiPct != nil && m.Pct != nil && *m.Pct >= *th.HiPct) ||
		(th.HiAmt != nil && m.Amt != nil && *m.Amt >= *th.HiAmt)
}

func enterLo(m Metric, th Thresholds) bool {
	return (th.LoPct != nil && m.Pct != nil && *m.Pct <= *th.LoPct) ||
		(th.LoAmt != nil && m.Amt != nil && *m.Amt <= *th.LoAmt)
}

func exitHi(m Metric, th Thresholds) bool {
	pctOut := th.HiPct == nil || m.Pct == nil || *m.Pct < *th.HiPct-th.PctGap
	amtOut := th.HiAmt == nil || m.Amt == nil || *m.Amt < *th.HiAmt-th.AmtGap
	return pctOut && amtOut
}

func exitLo(m Metric, th Thresholds) bool {
	pctOut := th.LoPct == nil || m.Pct == nil || *m.Pct > *th.LoPct+th.PctGap
	amtOut := th.LoAmt == nil || m.Amt == nil || *m.Amt > *th.LoAmt+th.AmtGap
	return pctOut && amtOut
}

// continueHi рост от последнего уведомления на шаг; сумма учитывается, только если задан её порог.
func continueHi(st *models.ThresholdState, m Metric, th Thresholds) bool {
	if th.HiPct != nil && m.Pct != nil && st.LastNotifyRate != nil && *m.Pct-*st.LastNotifyRate >= th.PctStep {
		return true
	}
	return th.HiAmt != nil && m.Amt != nil && st.LastNotifyAmount != nil && *m.Amt-*st.LastNotifyAmount >= th.AmtStep
}

func continueLo(st *models.ThresholdState, m Metric, th Thresholds) bool {
	if th.LoPct != nil && m.Pct != nil && st.LastNotifyRate != nil && *st.LastNotifyRate-*m.Pct >= th.PctStep {
		return true
	}
	return th.LoAmt != nil && m.Amt != nil && st.LastNotifyAmount != nil && *st.LastNotifyAmount-*m.Amt >= th.AmtStep
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
