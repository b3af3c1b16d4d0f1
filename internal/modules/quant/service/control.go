package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"market_monitor/internal/models"
	alerts "market_monitor/internal/modules/alerts/service"
	"market_monitor/internal/modules/kvstore"
	notify "market_monitor/internal/modules/notifier/service"
)

const (
	CommandPollInterval = time.Second
	StatusInterval      = 30 * time.Second
)

// PollCommand читает одноразовую команду; повтор с тем же ts игнорируется.
func (t *Trader) PollCommand(ctx context.Context) error {
	var cmd models.Command
	err := kvstore.GetJSON(ctx, t.kv, kvstore.KeyQuantCommand(t.symbol), &cmd)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read quant command: %w", err)
	}

	t.mu.Lock()
	if cmd.Ts <= t.lastCmdTs {
		t.mu.Unlock()
		return nil
	}
	t.lastCmdTs = cmd.Ts
	t.mu.Unlock()

	return t.Apply(ctx, cmd.Action)
}

func (t *Trader) Apply(ctx context.Context, action models.CommandAction) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch action {
	case models.CommandStart:
		t.enabled = true
	case models.CommandStop:
		t.enabled = false
	case models.CommandReset:
		if t.mode != models.ModePaper {
			return ErrPaperOnly
		}
		t.state = t.freshState()
		t.needVerify = false
		t.persistLocked(ctx)
	default:
		return fmt.Errorf("quant: unknown command %q", action)
	}
	t.log.Info("quant command applied", zap.String("action", string(action)), zap.Bool("enabled", t.enabled))
	t.out.Enqueue(notify.Service("🤖 quant "+string(action), t.symbol+" ["+string(t.mode)+"]", t.notifyMeta()))
	return nil
}

// OnConfigUpdate перечитывает quant-секцию не чаще одного раза одновременно.
func (t *Trader) OnConfigUpdate() {
	if t.cfgSrc == nil {
		return
	}
	_, _, _ = t.reload.Do("quant-config", func() (any, error) {
		doc := t.cfgSrc.Current()
		t.ApplyConfig(doc.Quant, doc.ContractSizes)
		return nil, nil
	})
}

// ApplyConfig горячие поля применяются сразу; режим, символ, плечо и стартовый
// баланс только логируются, нужен рестарт.
func (t *Trader) ApplyConfig(next models.QuantConfig, contractSizes map[string]float64) (applied, restart []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := &t.cfg
	if next.Enabled != cur.Enabled {
		cur.Enabled = next.Enabled
		t.enabled = next.Enabled
		applied = append(applied, "enabled")
	}
	hotFloat := []struct {
		name string
		dst  *float64
		v    float64
	}{
		{"positionSize", &cur.PositionSize, next.PositionSize},
		{"stopLoss", &cur.StopLoss, next.StopLoss},
		{"takeProfit", &cur.TakeProfit, next.TakeProfit},
		{"trailingStop", &cur.TrailingStop, next.TrailingStop},
		{"minConfidence", &cur.MinConfidence, next.MinConfidence},
		{"takerFee", &cur.TakerFee, next.TakerFee},
	}
	for _, f := range hotFloat {
		if *f.dst != f.v {
			*f.dst = f.v
			applied = append(applied, f.name)
		}
	}
	if next.MaxPositions != cur.MaxPositions {
		cur.MaxPositions = next.MaxPositions
		applied = append(applied, "maxPositions")
	}
	if next.SignalCheckIntervalMs != cur.SignalCheckIntervalMs {
		cur.SignalCheckIntervalMs = next.SignalCheckIntervalMs
		applied = append(applied, "signalCheckIntervalMs")
	}
	if next.KlinePeriod != cur.KlinePeriod || next.KlineSize != cur.KlineSize {
		cur.KlinePeriod, cur.KlineSize = next.KlinePeriod, next.KlineSize
		applied = append(applied, "kline")
	}

	if next.TestMode != cur.TestMode {
		restart = append(restart, "testMode")
	}
	if next.Symbol != cur.Symbol {
		restart = append(restart, "symbol")
	}
	if next.Leverage != cur.Leverage {
		restart = append(restart, "leverage")
	}
	if next.InitialBalance != cur.InitialBalance {
		restart = append(restart, "initialBalance")
	}
	t.meta = alerts.NewSymbolMeta(contractSizes)

	if len(applied) > 0 {
		t.log.Info("quant config hot-reloaded", zap.Strings("fields", applied))
	}
	if len(restart) > 0 {
		t.log.Warn("quant config changes require restart, not applied", zap.Strings("fields", restart))
	}
	return applied, restart
}

// Reconcile live: позиции, исчезнувшие на бирже, снимаются без записи сделки.
func (t *Trader) Reconcile(venue []models.Position) {
	if t.mode != models.ModeLive {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	open := make(map[models.Direction]bool, 2)
	for _, p := range venue {
		if p.Contract == t.symbol && p.Volume > 0 {
			open[p.Direction] = true
		}
	}
	now := t.now().UnixMilli()
	kept := t.state.Positions[:0]
	for _, p := range t.state.Positions {
		_, closing := t.closing[p.ID]
		if open[p.Direction] || closing || now-p.OpenTime < reconcileGrace.Milliseconds() {
			kept = append(kept, p)
			continue
		}
		t.log.Warn("position gone on the venue, dropped locally",
			zap.String("id", p.ID),
			zap.String("direction", string(p.Direction)),
		)
	}
	t.state.Positions = kept
}

// Status то, что видит UI.
func (t *Trader) Status() models.QuantStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.QuantStatus{
		Mode:       t.mode,
		Symbol:     t.symbol,
		Enabled:    t.enabled,
		Balance:    t.state.Balance,
		LastPrice:  t.lastPrice,
		Positions:  append([]models.QuantPosition(nil), t.state.Positions...),
		Stats:      t.state.Stats,
		LastSignal: t.lastSignal,
		UpdatedAt:  t.now().UnixMilli(),
	}
}

// Config применённая конфигурация.
func (t *Trader) Config() models.QuantConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// StatusSink снапшот для UI.
type StatusSink interface {
	SetQuant(st models.QuantStatus)
}

// ReportStatus лог и запись статуса в снапшот.
func (t *Trader) ReportStatus(sink StatusSink) {
	st := t.Status()
	sink.SetQuant(st)
	unreal := 0.0
	for _, p := range st.Positions {
		if st.LastPrice > 0 {
			unreal += PriceDelta(p.Direction, p.EntryPrice, st.LastPrice) * p.Value
		}
	}
	t.log.Info("quant status",
		zap.Bool("enabled", st.Enabled),
		zap.Float64("balance", st.Balance),
		zap.Float64("last_price", st.LastPrice),
		zap.Int("positions", len(st.Positions)),
		zap.Float64("unrealized", unreal),
		zap.Int("trades", st.Stats.TotalTrades),
		zap.Float64("max_drawdown", st.Stats.MaxDrawdown),
	)
}

// Run опрос команд и периодический статус до отмены ctx.
func (t *Trader) Run(ctx context.Context, sink StatusSink) {
	cmdTicker := time.NewTicker(CommandPollInterval)
	defer cmdTicker.Stop()
	statusTicker := time.NewTicker(StatusInterval)
	defer statusTicker.Stop()

	t.ReportStatus(sink)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cmdTicker.C:
			if err := t.PollCommand(ctx); err != nil {
				t.log.Warn("quant command rejected", zap.Error(err))
				if errors.Is(err, ErrPaperOnly) {
					t.out.Enqueue(notify.Service("⛔ quant reset rejected", err.Error(), t.notifyMeta()))
				}
			}
		case <-statusTicker.C:
			t.ReportStatus(sink)
		}
	}
}
