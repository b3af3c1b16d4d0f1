package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
	"market_monitor/internal/modules/configstore"
	"market_monitor/internal/modules/kvstore"
)

func newOperator(t *testing.T, mode models.QuantMode) (*Operator, *kvstore.MemoryStore) {
	t.Helper()
	kv := kvstore.NewMemoryStore("test")
	cs := configstore.New(kv, configstore.Seed{QuantMode: mode, QuantSymbol: "ETH-USDT"}, zap.NewNop())
	op := New(kv, cs, zap.NewNop())
	op.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return op, kv
}

func TestQuantCommandWritesKey(t *testing.T) {
	op, kv := newOperator(t, models.ModePaper)
	ctx := context.Background()

	sym, err := op.Quant(ctx, "", models.CommandStop)
	require.NoError(t, err)
	assert.Equal(t, "ETH-USDT", sym)

	var cmd models.Command
	require.NoError(t, kvstore.GetJSON(ctx, kv, kvstore.KeyQuantCommand("ETH-USDT"), &cmd))
	assert.Equal(t, models.CommandStop, cmd.Action)
	assert.Equal(t, int64(1_700_000_000_000), cmd.Ts)
}

func TestResetPaperOnly(t *testing.T) {
	op, kv := newOperator(t, models.ModeLive)
	ctx := context.Background()

	_, err := op.Quant(ctx, "eth-usdt", models.CommandReset)
	require.ErrorIs(t, err, ErrPaperOnly)

	var cmd models.Command
	assert.ErrorIs(t, kvstore.GetJSON(ctx, kv, kvstore.KeyQuantCommand("ETH-USDT"), &cmd), kvstore.ErrNotFound)

	_, err = op.Quant(ctx, "", models.CommandStart)
	require.NoError(t, err)
}

func TestSaveConfigValidates(t *testing.T) {
	op, _ := newOperator(t, models.ModePaper)
	ctx := context.Background()

	doc, err := op.Config(ctx)
	require.NoError(t, err)

	next := configstore.Clone(doc)
	next.WatchSymbols = []string{"BTC-USDT"}
	saved, err := op.SaveConfig(ctx, next)
	require.NoError(t, err)
	assert.Greater(t, saved.Version, doc.Version)

	bad := configstore.Clone(saved)
	bad.Quant.Leverage = -1
	_, err = op.SaveConfig(ctx, bad)
	require.Error(t, err)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Reset ")
	require.NoError(t, err)
	assert.Equal(t, models.CommandReset, a)

	_, err = ParseAction("pause")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestBotHandle(t *testing.T) {
	op, kv := newOperator(t, models.ModePaper)
	b := &Bot{op: op, log: zap.NewNop(), pendings: map[string]*pending{}}
	ctx := context.Background()

	assert.Contains(t, b.Handle(ctx, "status", nil), "Статус недоступен")

	require.NoError(t, kvstore.SetJSON(ctx, kv, kvstore.KeyQuant, models.QuantStatus{
		Mode: models.ModePaper, Symbol: "ETH-USDT", Enabled: true, Balance: 1000,
	}, kvstore.TTLQuant))
	assert.Contains(t, b.Handle(ctx, "status", nil), "ETH-USDT [paper]")

	assert.Contains(t, b.Handle(ctx, "quant", []string{"stop"}), "ETH-USDT stop")
	assert.Contains(t, b.Handle(ctx, "quant", []string{"pause"}), "unknown quant action")
	assert.Contains(t, b.Handle(ctx, "nope", nil), "/help")
}

func TestFormatStatus(t *testing.T) {
	out := FormatStatus(&models.QuantStatus{
		Mode: models.ModePaper, Symbol: "ETH-USDT", Balance: 1049,
		Stats: models.QuantStats{TotalTrades: 2, WinTrades: 1, MaxDrawdown: 0.0255},
		Positions: []models.QuantPosition{{Direction: models.DirectionLong, Size: 0.5, EntryPrice: 2000, Leverage: 10}},
	})
	assert.Contains(t, out, "win 50%")
	assert.Contains(t, out, "просадка 2.55%")
	assert.Contains(t, out, "LONG 0.5000 @ 2000.0000 x10")
}
