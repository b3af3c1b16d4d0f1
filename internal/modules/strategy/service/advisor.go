package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"market_monitor/internal/models"
)

// CandleSource свечи от новой к старой.
type CandleSource interface {
	Kline(ctx context.Context, symbol, period string, size int) ([]models.Candle, error)
}

// Advisor индикаторный коллаборатор кванта: свечи -> сигнал.
type Advisor struct {
	src    CandleSource
	engine Engine
	log    *zap.Logger
	now    func() time.Time
}

func NewAdvisor(src CandleSource, engine Engine, log *zap.Logger) *Advisor {
	return &Advisor{src: src, engine: engine, log: log, now: time.Now}
}

func (a *Advisor) Signal(ctx context.Context, symbol, period string, size int) (models.Signal, error) {
	if need := a.engine.MinCandles(); size < need {
		size = need
	}
	candles, err := a.src.Kline(ctx, symbol, period, size)
	if err != nil {
		return models.Signal{}, fmt.Errorf("kline %s %s: %w", symbol, period, err)
	}

	closes := make([]float64, 0, len(candles))
	for i := len(candles) - 1; i >= 0; i-- {
		if candles[i].Close > 0 {
			closes = append(closes, candles[i].Close)
		}
	}

	sig := a.engine.Evaluate(closes)
	sig.Ts = a.now().UnixMilli()
	a.log.Debug("signal evaluated",
		zap.String("symbol", symbol),
		zap.String("engine", a.engine.Name()),
		zap.String("action", string(sig.Action)),
		zap.Float64("confidence", sig.Confidence),
		zap.Strings("reasons", sig.Reasons),
	)
	return sig, nil
}
