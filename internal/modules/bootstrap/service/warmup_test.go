package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
)

type fakeKlines struct {
	closes map[string]float64
}

func (f *fakeKlines) Kline(_ context.Context, symbol, period string, size int) ([]models.Candle, error) {
	if period != warmupPeriod || size != 1 {
		return nil, errors.New("unexpected request")
	}
	c, ok := f.closes[symbol]
	if !ok {
		return nil, errors.New("invalid contract")
	}
	return []models.Candle{{ID: 1_700_000_000, Close: c}}, nil
}

type fakeBook struct {
	mu     sync.Mutex
	prices map[string]models.PricePoint
}

func (b *fakeBook) SetPrice(symbol string, price float64, ts int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = models.PricePoint{Price: price, Ts: ts}
}

func TestWarmupSeedsLastClose(t *testing.T) {
	book := &fakeBook{prices: map[string]models.PricePoint{}}
	w := NewWarmuper(&fakeKlines{closes: map[string]float64{"BTC-USDT": 60000, "ETH-USDT": 2000}}, book, zap.NewNop())

	n, err := w.Warmup(context.Background(), []string{"BTC-USDT", "ETH-USDT"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.PricePoint{Price: 2000, Ts: 1_700_000_000_000}, book.prices["ETH-USDT"])
}

func TestWarmupKeepsGoingOnError(t *testing.T) {
	book := &fakeBook{prices: map[string]models.PricePoint{}}
	w := NewWarmuper(&fakeKlines{closes: map[string]float64{"ETH-USDT": 2000}}, book, zap.NewNop())

	n, err := w.Warmup(context.Background(), []string{"NOPE-USDT", "ETH-USDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE-USDT")
	assert.Equal(t, 1, n)
	assert.Contains(t, book.prices, "ETH-USDT")
}
