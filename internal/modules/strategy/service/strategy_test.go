package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
)

func TestSMAAndEMA(t *testing.T) {
	v, ok := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-12)

	_, ok = SMA([]float64{1, 2}, 3)
	assert.False(t, ok)

	v, ok = EMA([]float64{1, 2, 3}, 3)
	require.True(t, ok)
	assert.InDelta(t, 2.25, v, 1e-12)

	_, ok = EMA([]float64{1, 2}, 3)
	assert.False(t, ok)
}

func TestRSIWilder(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	v, ok := RSI(up, 3)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	down := []float64{6, 5, 4, 3, 2, 1}
	v, _ = RSI(down, 3)
	assert.InDelta(t, 0.0, v, 1e-12)

	flat := []float64{5, 5, 5, 5}
	v, _ = RSI(flat, 3)
	assert.Equal(t, 50.0, v)

	// сид (0.5, 0.5), затем +1 -> (0.75, 0.25), затем -1 -> (0.375, 0.625)
	v, ok = RSI([]float64{1, 2, 1, 2, 1}, 2)
	require.True(t, ok)
	assert.InDelta(t, 37.5, v, 1e-9)

	_, ok = RSI([]float64{1, 2, 3}, 3)
	assert.False(t, ok)
}

func TestBollinger(t *testing.T) {
	b, ok := Bollinger([]float64{1, 2, 3, 4, 5}, 5, 2)
	require.True(t, ok)
	assert.InDelta(t, 3.0, b.Middle, 1e-12)
	assert.InDelta(t, 3+2*1.4142135623730951, b.Upper, 1e-9)
	assert.InDelta(t, 3-2*1.4142135623730951, b.Lower, 1e-9)
}

func TestMACD(t *testing.T) {
	_, ok := MACD(make([]float64, 20), 12, 26, 9)
	assert.False(t, ok)

	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 100
	}
	m, ok := MACD(flat, 12, 26, 9)
	require.True(t, ok)
	assert.InDelta(t, 0.0, m.MACD, 1e-12)
	assert.InDelta(t, 0.0, m.Histogram, 1e-12)
}

func TestScoreVotes(t *testing.T) {
	s := NewScorer(DefaultScorerParams())

	bull := Snapshot{
		Close: 100, EMAFast: 99, EMASlow: 98, SMA: 95, RSI: 50,
		MACD: MACDResult{Histogram: 0.5, PrevHistogram: 0.2},
		Boll: BollingerResult{Middle: 97, Upper: 105, Lower: 89},
	}
	sig := s.Score(bull)
	assert.Equal(t, models.ActionLong, sig.Action)
	assert.InDelta(t, 60.0, sig.Confidence, 1e-9)
	assert.Len(t, sig.Reasons, 3)

	// перекупленность и верхняя полоса против двух бычьих голосов
	mixed := bull
	mixed.MACD = MACDResult{}
	mixed.RSI = 80
	mixed.Close = 106
	sig = s.Score(mixed)
	assert.Equal(t, models.ActionHold, sig.Action)

	bear := Snapshot{
		Close: 80, EMAFast: 90, EMASlow: 95, SMA: 92, RSI: 50,
		MACD: MACDResult{Histogram: -0.3, PrevHistogram: -0.1},
		Boll: BollingerResult{Middle: 90, Upper: 100, Lower: 70},
	}
	sig = s.Score(bear)
	assert.Equal(t, models.ActionShort, sig.Action)
	assert.InDelta(t, 60.0, sig.Confidence, 1e-9)

	one := Snapshot{Close: 100, EMAFast: 99, EMASlow: 98, SMA: 100, RSI: 50, Boll: BollingerResult{Upper: 110, Lower: 90}}
	sig = s.Score(one)
	assert.Equal(t, models.ActionHold, sig.Action)
	assert.Zero(t, sig.Confidence)
}

func TestEvaluateNeedsEnoughCandles(t *testing.T) {
	s := NewScorer(DefaultScorerParams())
	sig := s.Evaluate([]float64{1, 2, 3})
	assert.Equal(t, models.ActionHold, sig.Action)
	assert.NotEmpty(t, sig.Reasons)
	assert.Equal(t, 50, s.MinCandles())
}

type fakeCandles struct {
	got struct {
		symbol, period string
		size           int
	}
	candles []models.Candle
}

func (f *fakeCandles) Kline(_ context.Context, symbol, period string, size int) ([]models.Candle, error) {
	f.got.symbol, f.got.period, f.got.size = symbol, period, size
	return f.candles, nil
}

func TestAdvisorFeedsOldestFirst(t *testing.T) {
	// от новой к старой: цена падала, значит последняя закрытая 1
	src := &fakeCandles{}
	for i := 0; i < 60; i++ {
		src.candles = append(src.candles, models.Candle{ID: int64(60 - i), Close: float64(i + 1)})
	}
	a := NewAdvisor(src, NewEngine(), zap.NewNop())

	sig, err := a.Signal(context.Background(), "BTC-USDT", "15min", 10)
	require.NoError(t, err)
	assert.Equal(t, 50, src.got.size)
	assert.Equal(t, 1.0, sig.Price)
	assert.Equal(t, models.ActionShort, sig.Action)
	assert.NotZero(t, sig.Ts)
}
