package configstore

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
	"market_monitor/internal/modules/kvstore"
)

func newTestStore(t *testing.T) (*Store, *kvstore.MemoryStore) {
	t.Helper()
	kv := kvstore.NewMemoryStore("test")
	s := New(kv, Seed{QuantMode: models.ModePaper, QuantSymbol: "eth-usdt"}, zap.NewNop())
	return s, kv
}

func TestLoadSeedsDefault(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()

	doc, _, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ETH-USDT", doc.Quant.Symbol)
	assert.True(t, doc.Quant.TestMode)

	_, err = kv.Get(ctx, kvstore.KeyConfig)
	require.NoError(t, err, "default must be persisted")
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.Load(ctx)
	require.NoError(t, err)

	doc := Clone(s.Current())
	doc.WatchSymbols = []string{"sol-usdt", "BTC-USDT", "SOL-USDT"}
	doc.Targets = []models.TargetRule{{Symbol: "btc-usdt", TargetPrice: 70000, Direction: models.TargetAbove}}

	saved, err := s.Save(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USDT", "SOL-USDT"}, saved.WatchSymbols)
	require.Len(t, saved.Targets, 1)
	assert.NotEmpty(t, saved.Targets[0].ID)
	assert.Equal(t, "BTC-USDT", saved.Targets[0].Symbol)

	loaded, changed, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "reload of the document just saved is not a change")

	h1, err := Hash(saved)
	require.NoError(t, err)
	h2, err := Hash(loaded)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestSaveBumpsVersionAndPublishes(t *testing.T) {
	s, kv := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _, err := s.Load(ctx)
	require.NoError(t, err)
	before := s.Current().Version

	msgs, stop, err := kv.Subscribe(ctx, kvstore.ChannelConfigUpdate)
	require.NoError(t, err)
	defer stop()

	doc := Clone(s.Current())
	doc.Quant.PositionSize = 0.2
	saved, err := s.Save(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, before+1, saved.Version)

	select {
	case <-msgs:
	case <-time.After(time.Second):
		t.Fatal("config:update was not published")
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.Load(ctx)
	require.NoError(t, err)

	doc := Clone(s.Current())
	doc.Quant.PositionSize = 1.5
	_, err = s.Save(ctx, doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, 0.1, s.Current().Quant.PositionSize)
}

func TestMutateReadsLiveDocument(t *testing.T) {
	s, _ := newTestStore(t)
	other, _ := newTestStore(t)
	ctx := context.Background()

	// два процесса над одним KV
	kv := kvstore.NewMemoryStore("shared")
	s.kv, other.kv = kv, kv

	_, _, err := s.Load(ctx)
	require.NoError(t, err)
	doc := Clone(s.Current())
	doc.Targets = []models.TargetRule{
		{ID: "a", Symbol: "ETH-USDT", TargetPrice: 2000, Direction: models.TargetAbove, NotifyOnce: true},
		{ID: "b", Symbol: "ETH-USDT", TargetPrice: 1500, Direction: models.TargetBelow},
	}
	_, err = s.Save(ctx, doc)
	require.NoError(t, err)

	// другой процесс правит watchSymbols, s об этом ещё не знает
	_, _, err = other.Load(ctx)
	require.NoError(t, err)
	od := Clone(other.Current())
	od.WatchSymbols = append(od.WatchSymbols, "SOL-USDT")
	_, err = other.Save(ctx, od)
	require.NoError(t, err)

	out, err := s.Mutate(ctx, func(d *models.ConfigDoc) error {
		kept := d.Targets[:0]
		for _, r := range d.Targets {
			if r.ID != "a" {
				kept = append(kept, r)
			}
		}
		d.Targets = kept
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out.Targets, 1)
	assert.Equal(t, "b", out.Targets[0].ID)
	assert.Contains(t, out.WatchSymbols, "SOL-USDT")
}

func TestLoadKeepsLastKnownOnMalformed(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.Load(ctx)
	require.NoError(t, err)
	prev := s.Current()

	require.NoError(t, kv.Set(ctx, kvstore.KeyConfig, []byte("{not json"), 0))
	got, changed, err := s.Load(ctx)
	require.Error(t, err)
	assert.False(t, changed)
	assert.Same(t, prev, got)
}

func TestSubscribeLatestWins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.Load(ctx)
	require.NoError(t, err)

	ch, cancel := s.Subscribe()
	defer cancel()

	for _, size := range []float64{0.2, 0.3} {
		doc := Clone(s.Current())
		doc.Quant.PositionSize = size
		_, err := s.Save(ctx, doc)
		require.NoError(t, err)
	}

	got := <-ch
	assert.Equal(t, 0.3, got.Quant.PositionSize)
	select {
	case <-ch:
		t.Fatal("only the latest document must be buffered")
	default:
	}
}

func TestWatchPicksUpForeignSave(t *testing.T) {
	kv := kvstore.NewMemoryStore("shared")
	a := New(kv, Seed{QuantMode: models.ModePaper}, zap.NewNop())
	b := New(kv, Seed{QuantMode: models.ModePaper}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _, err := a.Load(ctx)
	require.NoError(t, err)
	_, _, err = b.Load(ctx)
	require.NoError(t, err)

	ch, stop := a.Subscribe()
	defer stop()
	go a.Watch(ctx, time.Second)
	// Watch подписывается асинхронно
	time.Sleep(50 * time.Millisecond)

	doc := Clone(b.Current())
	doc.Quant.StopLoss = 0.3
	_, err = b.Save(ctx, doc)
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, 0.3, got.Quant.StopLoss)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not reload")
	}
}
