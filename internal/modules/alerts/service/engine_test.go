package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
)

type captureQueue struct{ got []models.Notification }

func (c *captureQueue) Enqueue(n models.Notification) bool {
	c.got = append(c.got, n)
	return true
}

type fakeMutator struct {
	mu    sync.Mutex
	doc   models.ConfigDoc
	err   error
	calls int
	// block держит Mutate до отмены ctx
	block bool
}

func (f *fakeMutator) Mutate(ctx context.Context, fn func(doc *models.ConfigDoc) error) (*models.ConfigDoc, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if err := fn(&f.doc); err != nil {
		return nil, err
	}
	out := f.doc
	return &out, nil
}

func (f *fakeMutator) snapshot() (models.ConfigDoc, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc, f.calls
}

func runRemovals(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.RunRemovals(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func tick(sym string, price float64, ms int64) models.Tick {
	return models.Tick{Symbol: sym, Price: price, ReceivedAt: time.UnixMilli(ms)}
}

func baseDoc() *models.ConfigDoc {
	return &models.ConfigDoc{
		WatchSymbols: []string{"ETH-USDT"},
		PriceChange: models.PriceChangeConfig{
			Enabled:             true,
			Windows:             []models.PriceWindow{{DurationMs: 60_000, PctThreshold: 1, Label: "1m"}},
			MinNotifyIntervalMs: 120_000,
		},
		PnL: models.PnLConfig{Enabled: true, HiPct: 10, LoPct: -10, RepeatIntervalMs: 0, EnableHi: true, EnableLo: true},
	}
}

func TestEngineTickBeforePositionsIsSkipped(t *testing.T) {
	q := &captureQueue{}
	e := NewEngine(q, nil, zap.NewNop())
	e.OnTick(context.Background(), tick("BTC-USDT", 50_000, 1), baseDoc())
	assert.Empty(t, q.got)
}

func TestEnginePnLNotification(t *testing.T) {
	q := &captureQueue{}
	e := NewEngine(q, nil, zap.NewNop())
	e.SetPositions([]models.Position{{
		Contract: "ETH-USDT", Direction: models.DirectionLong, Volume: 100, CostOpen: 2000, PositionMargin: 200,
	}})

	doc := baseDoc()
	doc.WatchSymbols = nil
	e.OnTick(context.Background(), tick("ETH-USDT", 2010, 1_000), doc) // ROE 5%
	assert.Empty(t, q.got)
	e.OnTick(context.Background(), tick("ETH-USDT", 2040, 2_000), doc) // ROE 20%
	require.Len(t, q.got, 1)
	assert.Contains(t, q.got[0].Title, "LONG")

	// позиция закрылась: состояние политики сброшено
	e.SetPositions(nil)
	_, ok := e.PnLState(models.PosKey{Contract: "ETH-USDT", Direction: models.DirectionLong})
	assert.False(t, ok)
}

func TestEnginePriceChangeRateGate(t *testing.T) {
	q := &captureQueue{}
	e := NewEngine(q, nil, zap.NewNop())
	doc := baseDoc()
	doc.PnL.Enabled = false
	ctx := context.Background()

	e.OnTick(ctx, tick("ETH-USDT", 2000, 0), doc)
	e.OnTick(ctx, tick("ETH-USDT", 2030, 60_000), doc) // +1.5%
	require.Len(t, q.got, 1)

	// дальше рост, но minNotifyIntervalMs ещё не прошёл
	e.OnTick(ctx, tick("ETH-USDT", 2100, 61_000), doc)
	assert.Len(t, q.got, 1)

	// символ не в watchSymbols: детектор молчит
	e.OnTick(ctx, tick("BTC-USDT", 1, 0), doc)
	e.OnTick(ctx, tick("BTC-USDT", 2, 60_000), doc)
	assert.Len(t, q.got, 1)
}

func TestEngineNotifyOnceRemovesRule(t *testing.T) {
	q := &captureQueue{}
	rule := models.TargetRule{ID: "r1", Symbol: "ETH-USDT", TargetPrice: 2000, Direction: models.TargetAbove, NotifyOnce: true}
	keep := models.TargetRule{ID: "r2", Symbol: "ETH-USDT", TargetPrice: 5000, Direction: models.TargetAbove}
	mut := &fakeMutator{doc: models.ConfigDoc{
		WatchSymbols: []string{"SOL-USDT"},
		Targets:      []models.TargetRule{rule, keep},
	}}
	e := NewEngine(q, mut, zap.NewNop())
	runRemovals(t, e)

	doc := baseDoc()
	doc.Targets = []models.TargetRule{rule, keep}
	e.OnTick(context.Background(), tick("ETH-USDT", 2001, 1), doc)
	require.Len(t, q.got, 1)

	require.Eventually(t, func() bool {
		_, calls := mut.snapshot()
		return calls == 1
	}, time.Second, 5*time.Millisecond)
	saved, _ := mut.snapshot()
	require.Len(t, saved.Targets, 1)
	assert.Equal(t, "r2", saved.Targets[0].ID)
	assert.Equal(t, []string{"SOL-USDT"}, saved.WatchSymbols, "only the rule set is touched")

	// документ ещё не перечитан, правило уже не срабатывает
	e.OnTick(context.Background(), tick("ETH-USDT", 2002, 2), doc)
	assert.Len(t, q.got, 1)
}

func TestEngineNotifyOnceRestoredOnSaveFailure(t *testing.T) {
	q := &captureQueue{}
	rule := models.TargetRule{ID: "r1", Symbol: "ETH-USDT", TargetPrice: 2000, Direction: models.TargetAbove, NotifyOnce: true}
	mut := &fakeMutator{err: errors.New("kv down")}
	e := NewEngine(q, mut, zap.NewNop())
	runRemovals(t, e)

	doc := baseDoc()
	doc.Targets = []models.TargetRule{rule}
	e.OnTick(context.Background(), tick("ETH-USDT", 2001, 1), doc)
	require.Len(t, q.got, 1)
	require.Eventually(t, func() bool { return len(e.restores) == 1 }, time.Second, 5*time.Millisecond)

	e.OnTick(context.Background(), tick("ETH-USDT", 2001, 2), doc)
	assert.Len(t, q.got, 2)
}

func TestEngineNotifyOnceSlowStoreDoesNotBlockTicks(t *testing.T) {
	q := &captureQueue{}
	rule := models.TargetRule{ID: "r1", Symbol: "ETH-USDT", TargetPrice: 2000, Direction: models.TargetAbove, NotifyOnce: true}
	mut := &fakeMutator{block: true}
	e := NewEngine(q, mut, zap.NewNop())
	runRemovals(t, e)

	doc := baseDoc()
	doc.Targets = []models.TargetRule{rule}
	start := time.Now()
	e.OnTick(context.Background(), tick("ETH-USDT", 2001, 1), doc)
	e.OnTick(context.Background(), tick("ETH-USDT", 2002, 2), doc)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Len(t, q.got, 1, "rule stays fired while the write is in flight")

	require.Eventually(t, func() bool {
		_, calls := mut.snapshot()
		return calls == 1
	}, time.Second, 5*time.Millisecond)
}
