package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
)

type fakeBook struct {
	mu        sync.Mutex
	prices    map[string]float64
	positions []models.Position
}

func (b *fakeBook) SetPrice(symbol string, price float64, _ int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

func (b *fakeBook) SetPositions(list []models.Position, _ int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = list
}

func (b *fakeBook) PositionSymbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p.Contract)
	}
	return out
}

type fakeAlerts struct {
	mu        sync.Mutex
	ticks     []models.Tick
	configs   int
	positions []models.Position
}

func (a *fakeAlerts) OnTick(_ context.Context, t models.Tick, _ *models.ConfigDoc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ticks = append(a.ticks, t)
}

func (a *fakeAlerts) OnConfig(*models.ConfigDoc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configs++
}

func (a *fakeAlerts) SetPositions(list []models.Position) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.positions = list
}

type fakeTrader struct {
	mu         sync.Mutex
	ticks      int
	reconciled int
}

func (t *fakeTrader) Symbol() string { return "ETH-USDT" }

func (t *fakeTrader) OnTick(context.Context, models.Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks++
}

func (t *fakeTrader) Reconcile([]models.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reconciled++
}

type fakeMarket struct {
	mu      sync.Mutex
	desired [][]string
}

func (m *fakeMarket) UpdateSubscriptions(desired []string) (added, removed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desired = append(m.desired, desired)
	return desired, nil
}

func (m *fakeMarket) last() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.desired) == 0 {
		return nil
	}
	return m.desired[len(m.desired)-1]
}

type fakeConfig struct {
	mu  sync.Mutex
	doc *models.ConfigDoc
	ch  chan *models.ConfigDoc
}

func (c *fakeConfig) Current() *models.ConfigDoc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

func (c *fakeConfig) Subscribe() (<-chan *models.ConfigDoc, func()) { return c.ch, func() {} }

func (c *fakeConfig) publish(doc *models.ConfigDoc) {
	c.mu.Lock()
	c.doc = doc
	c.mu.Unlock()
	c.ch <- doc
}

type fakeHealth struct {
	mu   sync.Mutex
	last time.Time
}

func (h *fakeHealth) TouchTick(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = t
}

type harness struct {
	r         *Runner
	ticks     chan models.Tick
	positions chan models.PositionsUpdate
	cfg       *fakeConfig
	book      *fakeBook
	alerts    *fakeAlerts
	trader    *fakeTrader
	market    *fakeMarket
	health    *fakeHealth
}

func newHarness() *harness {
	h := &harness{
		ticks:     make(chan models.Tick, 8),
		positions: make(chan models.PositionsUpdate, 8),
		cfg: &fakeConfig{
			doc: &models.ConfigDoc{WatchSymbols: []string{"btc-usdt", "ETH-USDT"}},
			ch:  make(chan *models.ConfigDoc, 1),
		},
		book:   &fakeBook{prices: map[string]float64{}},
		alerts: &fakeAlerts{},
		trader: &fakeTrader{},
		market: &fakeMarket{},
		health: &fakeHealth{},
	}
	h.r = New(Deps{
		Ticks:     h.ticks,
		Positions: h.positions,
		Config:    h.cfg,
		Book:      h.book,
		Alerts:    h.alerts,
		Trader:    h.trader,
		Market:    h.market,
		Health:    h.health,
		Log:       zap.NewNop(),
	})
	return h
}

func TestDesiredUnionsWatchPositionsAndQuant(t *testing.T) {
	h := newHarness()
	h.r.OnPositions(models.PositionsUpdate{
		Positions:  []models.Position{{Contract: "SOL-USDT", Direction: models.DirectionLong, Volume: 3}},
		ReceivedAt: time.Now(),
	})

	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"}, h.market.last())
	assert.Equal(t, 1, h.trader.reconciled)
	assert.Len(t, h.alerts.positions, 1)
}

func TestTickFansOut(t *testing.T) {
	h := newHarness()
	now := time.Now()
	h.r.OnTick(context.Background(), models.Tick{Symbol: "ETH-USDT", Price: 2000, ReceivedAt: now})

	assert.Equal(t, 2000.0, h.book.prices["ETH-USDT"])
	assert.Len(t, h.alerts.ticks, 1)
	assert.Equal(t, 1, h.trader.ticks)
	assert.Equal(t, now, h.health.last)
}

func TestRunFollowsConfigUpdates(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(h.market.last()) == 2 }, time.Second, 10*time.Millisecond)

	h.cfg.publish(&models.ConfigDoc{WatchSymbols: []string{"DOGE-USDT"}})
	require.Eventually(t, func() bool {
		last := h.market.last()
		return len(last) == 2 && last[0] == "DOGE-USDT"
	}, time.Second, 10*time.Millisecond)

	h.ticks <- models.Tick{Symbol: "DOGE-USDT", Price: 0.1, ReceivedAt: time.Now()}
	require.Eventually(t, func() bool {
		h.alerts.mu.Lock()
		defer h.alerts.mu.Unlock()
		return len(h.alerts.ticks) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	h.alerts.mu.Lock()
	assert.Equal(t, 2, h.alerts.configs)
	h.alerts.mu.Unlock()
}
