package service

// emaState потоковая EMA, первая точка сид.
type emaState struct {
	period int
	alpha  float64
	value  float64
	warmup int
}

func newEMA(period int) emaState {
	if period <= 1 {
		period = 1
	}
	return emaState{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

func (e *emaState) Update(price float64) {
	if e.warmup == 0 {
		e.value = price
		e.warmup = 1
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
	if e.warmup < e.period {
		e.warmup++
	}
}

func (e *emaState) Ready() bool    { return e.warmup >= e.period }
func (e *emaState) Value() float64 { return e.value }

// EMA последнее значение по ряду от старой к новой; ok=false пока ряд короче period.
func EMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	e := newEMA(period)
	for _, c := range closes {
		e.Update(c)
	}
	return e.Value(), e.Ready()
}

// emaSeries EMA в каждой точке ряда.
func emaSeries(closes []float64, period int) []float64 {
	e := newEMA(period)
	out := make([]float64, len(closes))
	for i, c := range closes {
		e.Update(c)
		out[i] = e.Value()
	}
	return out
}
