package service

import (
	"math"

	"market_monitor/internal/models"
)

// evictSlackMs запас сверх самого широкого окна.
const evictSlackMs = 5_000

// Detector траектории цен по символам и оценка окон.
type Detector struct {
	points map[string][]models.PricePoint
}

func NewDetector() *Detector {
	return &Detector{points: make(map[string][]models.PricePoint)}
}

// Observe добавляет точку и возвращает самое значимое окно.
// ok == false, если ни у одного окна ещё нет базовой точки.
// Сработавшие окна важнее несработавших; внутри группы max |pct|, при равенстве короче.
func (d *Detector) Observe(symbol string, price float64, nowMs int64, windows []models.PriceWindow) (models.PriceChangeEvent, bool) {
	pts := append(d.points[symbol], models.PricePoint{Price: price, Ts: nowMs})

	var maxDur int64
	for _, w := range windows {
		if w.DurationMs > maxDur {
			maxDur = w.DurationMs
		}
	}
	cutoff := nowMs - maxDur - evictSlackMs
	drop := 0
	for drop < len(pts)-1 && pts[drop].Ts < cutoff {
		drop++
	}
	if drop > 0 {
		pts = append(pts[:0:0], pts[drop:]...)
	}
	d.points[symbol] = pts

	var (
		best  models.PriceChangeEvent
		found bool
	)
	for _, w := range windows {
		if w.DurationMs <= 0 {
			continue
		}
		base, ok := baseFor(pts, nowMs-w.DurationMs)
		if !ok || base.Price == 0 {
			continue
		}
		abs := price - base.Price
		ev := models.PriceChangeEvent{
			Symbol:    symbol,
			Window:    w,
			BasePrice: base.Price,
			BaseTs:    base.Ts,
			Price:     price,
			Ts:        nowMs,
			Pct:       abs / base.Price * 100,
			Abs:       abs,
		}
		ev.Tripped = (w.PctThreshold > 0 && math.Abs(ev.Pct) >= w.PctThreshold) ||
			(w.AbsThreshold > 0 && math.Abs(ev.Abs) >= w.AbsThreshold)

		if !found || better(ev, best) {
			best, found = ev, true
		}
	}
	return best, found
}

func better(a, b models.PriceChangeEvent) bool {
	if a.Tripped != b.Tripped {
		return a.Tripped
	}
	pa, pb := math.Abs(a.Pct), math.Abs(b.Pct)
	if pa != pb {
		return pa > pb
	}
	return a.Window.DurationMs < b.Window.DurationMs
}

// baseFor последняя точка с ts <= at. Точки упорядочены по времени.
func baseFor(pts []models.PricePoint, at int64) (models.PricePoint, bool) {
	for i := len(pts) - 1; i >= 0; i-- {
		if pts[i].Ts <= at {
			return pts[i], true
		}
	}
	return models.PricePoint{}, false
}

// Points копия траектории символа.
func (d *Detector) Points(symbol string) []models.PricePoint {
	return append([]models.PricePoint(nil), d.points[symbol]...)
}

// Forget символ ушёл из наблюдения.
func (d *Detector) Forget(symbol string) { delete(d.points, symbol) }
