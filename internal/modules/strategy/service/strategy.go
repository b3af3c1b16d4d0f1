package service

import "market_monitor/internal/models"

// Engine превращает ряд закрытий (от старой к новой) в сигнал.
type Engine interface {
	Evaluate(closes []float64) models.Signal
	// MinCandles сколько свечей нужно для полного набора индикаторов
	MinCandles() int
	Name() string
}
