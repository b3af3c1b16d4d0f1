package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"market_monitor/internal/metrics"
	"market_monitor/internal/models"
	alerts "market_monitor/internal/modules/alerts/service"
	htx "market_monitor/internal/modules/htx_client/service"
	"market_monitor/internal/modules/kvstore"
	notify "market_monitor/internal/modules/notifier/service"
)

var (
	ErrPaperOnly     = errors.New("quant: command is available in paper mode only")
	ErrOpenInFlight  = errors.New("quant: open already in progress")
	ErrBelowContract = errors.New("quant: position size below one contract")
)

const (
	// свежая live-позиция не сверяется с биржей, пока та её не прислала
	reconcileGrace = 10 * time.Second
	persistTimeout = 3 * time.Second
	maxOrders      = 500
)

// SignalSource индикаторный коллаборатор.
type SignalSource interface {
	Signal(ctx context.Context, symbol, period string, size int) (models.Signal, error)
}

// Venue ордера live-режима.
type Venue interface {
	PlaceOrder(ctx context.Context, r htx.OrderRequest) (htx.OrderResult, error)
	PlaceTPSL(ctx context.Context, r htx.TPSLRequest) (htx.TPSLResult, error)
	ClosePosition(ctx context.Context, contract string, dir models.Direction, volume int64, leverRate int) (htx.OrderResult, error)
}

// Journal журнал сделок, ошибки не влияют на торговлю.
type Journal interface {
	Record(ctx context.Context, order models.TradeOrder)
}

type Enqueuer interface {
	Enqueue(n models.Notification) bool
}

// ConfigSource кэшированный документ конфигурации.
type ConfigSource interface {
	Current() *models.ConfigDoc
}

type Deps struct {
	KV      kvstore.Store
	Signals SignalSource
	Venue   Venue
	Journal Journal
	Out     Enqueuer
	Config  ConfigSource
	Log     *zap.Logger
}

// Trader автомат одной пары (mode, symbol). Состояние под mu;
// оценка сигнала и открытие идут через флаги single-flight.
type Trader struct {
	mode   models.QuantMode
	symbol string

	kv      kvstore.Store
	signals SignalSource
	venue   Venue
	journal Journal
	out     Enqueuer
	cfgSrc  ConfigSource
	log     *zap.Logger

	now   func() time.Time
	spawn func(func())

	mu           sync.Mutex
	cfg          models.QuantConfig
	enabled      bool
	meta         alerts.SymbolMeta
	state        models.QuantState
	needVerify   bool
	lastPrice    float64
	lastSignal   *models.Signal
	lastSignalAt time.Time
	lastCmdTs    int64
	closing      map[string]struct{}

	evaluating atomic.Bool
	opening    atomic.Bool
	reload     singleflight.Group

	// запись paper-состояния в KV вне mu: последний снимок, один писатель
	persistMu  sync.Mutex
	persisting bool
	pending    *models.QuantState
}

func NewTrader(d Deps, cfg models.QuantConfig) *Trader {
	t := &Trader{
		mode:    cfg.Mode(),
		symbol:  cfg.Symbol,
		kv:      d.KV,
		signals: d.Signals,
		venue:   d.Venue,
		journal: d.Journal,
		out:     d.Out,
		cfgSrc:  d.Config,
		log:     d.Log.With(zap.String("mode", string(cfg.Mode())), zap.String("symbol", cfg.Symbol)),
		now:     time.Now,
		spawn:   func(f func()) { go f() },
		cfg:     cfg,
		enabled: cfg.Enabled,
		closing: make(map[string]struct{}),
	}
	if d.Config != nil {
		t.meta = alerts.NewSymbolMeta(d.Config.Current().ContractSizes)
	} else {
		t.meta = alerts.NewSymbolMeta(nil)
	}
	t.state = t.freshState()
	return t
}

func (t *Trader) Mode() models.QuantMode { return t.mode }
func (t *Trader) Symbol() string         { return t.symbol }

func (t *Trader) freshState() models.QuantState {
	return models.QuantState{
		Balance:    t.cfg.InitialBalance,
		Positions:  []models.QuantPosition{},
		Orders:     []models.TradeOrder{},
		Stats:      models.QuantStats{PeakBalance: t.cfg.InitialBalance},
		LastUpdate: t.now().UnixMilli(),
	}
}

// Load поднимает paper-состояние; открытые позиции проверяются на первом тике.
func (t *Trader) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode != models.ModePaper {
		t.state = t.freshState()
		return nil
	}
	var st models.QuantState
	err := kvstore.GetJSON(ctx, t.kv, kvstore.KeyQuantState(t.mode, t.symbol), &st)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		t.state = t.freshState()
		t.log.Info("quant state initialised", zap.Float64("balance", t.state.Balance))
		return nil
	case err != nil:
		t.state = t.freshState()
		return fmt.Errorf("load quant state: %w", err)
	}
	if st.Positions == nil {
		st.Positions = []models.QuantPosition{}
	}
	if st.Stats.PeakBalance < st.Balance {
		st.Stats.PeakBalance = st.Balance
	}
	t.state = st
	t.needVerify = len(st.Positions) > 0
	t.log.Info("quant state restored",
		zap.Float64("balance", st.Balance),
		zap.Int("positions", len(st.Positions)),
		zap.Int("trades", st.Stats.TotalTrades),
	)
	return nil
}

// OnTick сопровождение позиций и, по интервалу, запрос сигнала.
func (t *Trader) OnTick(ctx context.Context, tick models.Tick) {
	if tick.Symbol != t.symbol || tick.Price <= 0 {
		return
	}

	t.mu.Lock()
	t.lastPrice = tick.Price
	var pending []func()
	if t.needVerify {
		t.needVerify = false
		pending = t.verifyOfflineLocked(ctx, tick.Price)
	}
	due := false
	if t.enabled {
		pending = append(pending, t.superviseLocked(ctx, tick.Price)...)
		due = t.signalDueLocked()
	}
	t.mu.Unlock()

	for _, f := range pending {
		t.spawn(f)
	}

	if due && t.evaluating.CompareAndSwap(false, true) {
		t.spawn(func() {
			defer t.evaluating.Store(false)
			t.evaluateSignal(ctx)
		})
	}
}

func (t *Trader) verifyOfflineLocked(ctx context.Context, price float64) []func() {
	var pending []func()
	for _, p := range append([]models.QuantPosition(nil), t.state.Positions...) {
		reason := OfflineReason(p, price, t.cfg)
		if reason == models.ReasonNone {
			continue
		}
		t.log.Warn("position crossed a threshold while offline",
			zap.String("id", p.ID),
			zap.Float64("roe", ROE(p, price)),
			zap.String("reason", string(reason)),
		)
		if f := t.closeLocked(ctx, p.ID, price, reason); f != nil {
			pending = append(pending, f)
		}
	}
	return pending
}

func (t *Trader) superviseLocked(ctx context.Context, price float64) []func() {
	var exits []struct {
		id     string
		reason models.CloseReason
	}
	for i := range t.state.Positions {
		p := &t.state.Positions[i]
		trackExtremes(p, price)
		if r := ExitReason(*p, price, t.cfg); r != models.ReasonNone {
			exits = append(exits, struct {
				id     string
				reason models.CloseReason
			}{p.ID, r})
		}
	}
	var pending []func()
	for _, e := range exits {
		if f := t.closeLocked(ctx, e.id, price, e.reason); f != nil {
			pending = append(pending, f)
		}
	}
	return pending
}

func (t *Trader) signalDueLocked() bool {
	if t.signals == nil || len(t.state.Positions) >= t.cfg.MaxPositions {
		return false
	}
	interval := time.Duration(t.cfg.SignalCheckIntervalMs) * time.Millisecond
	now := t.now()
	if !t.lastSignalAt.IsZero() && now.Sub(t.lastSignalAt) < interval {
		return false
	}
	t.lastSignalAt = now
	return true
}

// evaluateSignal дольше интервала не ждёт: запрос отменяется и пропускается.
func (t *Trader) evaluateSignal(ctx context.Context) {
	t.mu.Lock()
	cfg := t.cfg
	t.mu.Unlock()

	timeout := time.Duration(cfg.SignalCheckIntervalMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sig, err := t.signals.Signal(sctx, t.symbol, cfg.KlinePeriod, cfg.KlineSize)
	if err != nil {
		t.log.Warn("signal request failed", zap.Error(err))
		return
	}

	t.mu.Lock()
	t.lastSignal = &sig
	price := t.lastPrice
	t.mu.Unlock()

	if sig.Action == models.ActionHold || sig.Confidence < cfg.MinConfidence {
		return
	}
	dir := models.DirectionLong
	if sig.Action == models.ActionShort {
		dir = models.DirectionShort
	}
	if sig.Price > 0 && price <= 0 {
		price = sig.Price
	}
	if err := t.Open(ctx, dir, price, &sig); err != nil && !errors.Is(err, ErrOpenInFlight) {
		t.log.Error("open position failed", zap.Error(err))
	}
}

// Open вход по рынку. В live комиссия списывается до ордера и возвращается при отказе.
func (t *Trader) Open(ctx context.Context, dir models.Direction, price float64, sig *models.Signal) error {
	if price <= 0 {
		return errors.New("quant: no price to open at")
	}
	if !t.opening.CompareAndSwap(false, true) {
		return ErrOpenInFlight
	}
	defer t.opening.Store(false)

	t.mu.Lock()
	if len(t.state.Positions) >= t.cfg.MaxPositions {
		t.mu.Unlock()
		return nil
	}
	cfg := t.cfg
	var plan OpenPlan
	if t.mode == models.ModeLive {
		plan = PlanOpenContracts(t.state.Balance, price, t.meta.ContractSize(t.symbol), cfg)
		if plan.Volume < 1 {
			t.mu.Unlock()
			return ErrBelowContract
		}
	} else {
		plan = PlanOpen(t.state.Balance, price, cfg)
	}
	if plan.Margin <= 0 {
		t.mu.Unlock()
		return errors.New("quant: balance exhausted")
	}
	t.state.Balance -= plan.Fee
	t.state.Stats.TotalFees += plan.Fee
	t.mu.Unlock()

	if t.mode == models.ModeLive {
		if err := t.placeLive(ctx, dir, price, plan, cfg); err != nil {
			t.mu.Lock()
			t.state.Balance += plan.Fee
			t.state.Stats.TotalFees -= plan.Fee
			t.mu.Unlock()
			metrics.Trades.WithLabelValues(string(t.mode), string(models.OrderOpen), "rejected").Inc()
			t.out.Enqueue(notify.Service("⛔ live open rejected", fmt.Sprintf("%s %s: %v", t.symbol, dir, err), t.notifyMeta()))
			return err
		}
	}

	hi, lo := price, price
	pos := models.QuantPosition{
		ID:                 uuid.NewString(),
		Direction:          dir,
		EntryPrice:         price,
		Size:               plan.Size,
		Margin:             plan.Margin,
		Value:              plan.Value,
		Leverage:           cfg.Leverage,
		OpenTime:           t.now().UnixMilli(),
		OpenFee:            plan.Fee,
		SuggestionSnapshot: sig,
		Volume:             plan.Volume,
	}
	if dir == models.DirectionLong {
		pos.HighestPrice = &hi
	} else {
		pos.LowestPrice = &lo
	}
	order := models.TradeOrder{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		Mode:       t.mode,
		Symbol:     t.symbol,
		Side:       models.OrderOpen,
		Direction:  dir,
		EntryPrice: price,
		Size:       plan.Size,
		Leverage:   cfg.Leverage,
		Fee:        plan.Fee,
		Ts:         pos.OpenTime,
	}

	t.mu.Lock()
	t.state.Positions = append(t.state.Positions, pos)
	t.recordLocked(order)
	t.persistLocked(ctx)
	t.mu.Unlock()

	metrics.Trades.WithLabelValues(string(t.mode), string(models.OrderOpen), "signal").Inc()
	t.log.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("direction", string(dir)),
		zap.Float64("entry", price),
		zap.Float64("size", plan.Size),
		zap.Float64("margin", plan.Margin),
		zap.Float64("fee", plan.Fee),
	)
	t.journalRecord(ctx, order)
	t.out.Enqueue(notify.QuantOpen(t.mode, t.symbol, pos, t.notifyMeta()))
	return nil
}

func (t *Trader) placeLive(ctx context.Context, dir models.Direction, price float64, plan OpenPlan, cfg models.QuantConfig) error {
	if t.venue == nil {
		return errors.New("quant: live mode without venue client")
	}
	lever := int(cfg.Leverage)
	if _, err := t.venue.PlaceOrder(ctx, htx.OrderRequest{
		Contract:  t.symbol,
		Volume:    plan.Volume,
		Side:      htx.OpenSide(dir),
		Offset:    htx.OffsetOpen,
		LeverRate: lever,
	}); err != nil {
		return err
	}
	take, stop := TakeStopPrices(dir, price, cfg.Leverage, cfg)
	if take <= 0 && stop <= 0 {
		return nil
	}
	if _, err := t.venue.PlaceTPSL(ctx, htx.TPSLRequest{
		Contract:  t.symbol,
		Volume:    plan.Volume,
		Side:      htx.CloseSide(dir),
		TakePrice: take,
		StopPrice: stop,
	}); err != nil {
		// позиция уже открыта, локальное сопровождение остаётся
		t.log.Error("tpsl order rejected", zap.Error(err))
		t.out.Enqueue(notify.Service("⚠️ tpsl rejected", fmt.Sprintf("%s %s: %v", t.symbol, dir, err), t.notifyMeta()))
	}
	return nil
}

// closeLocked paper закрывает сразу. Для live возвращает ордер, который
// вызывающий запускает после снятия mu; учёт идёт после ответа биржи.
func (t *Trader) closeLocked(ctx context.Context, id string, price float64, reason models.CloseReason) func() {
	idx := t.indexLocked(id)
	if idx < 0 {
		return nil
	}
	if t.mode == models.ModePaper {
		t.finishCloseLocked(ctx, idx, price, reason)
		return nil
	}
	if _, busy := t.closing[id]; busy {
		return nil
	}
	t.closing[id] = struct{}{}
	p := t.state.Positions[idx]
	return func() {
		var err error
		if t.venue == nil {
			err = errors.New("quant: live mode without venue client")
		} else {
			_, err = t.venue.ClosePosition(ctx, t.symbol, p.Direction, p.Volume, int(p.Leverage))
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.closing, id)
		if err != nil {
			t.log.Error("live close rejected", zap.String("id", id), zap.Error(err))
			metrics.Trades.WithLabelValues(string(t.mode), string(models.OrderClose), "rejected").Inc()
			return
		}
		if i := t.indexLocked(id); i >= 0 {
			t.finishCloseLocked(ctx, i, price, reason)
		}
	}
}

func (t *Trader) finishCloseLocked(ctx context.Context, idx int, price float64, reason models.CloseReason) {
	p := t.state.Positions[idx]
	plan := PlanClose(p, price, t.cfg.TakerFee)
	applyClose(&t.state, plan.PnL, plan.CloseFee)
	t.state.Positions = append(t.state.Positions[:idx], t.state.Positions[idx+1:]...)

	order := models.TradeOrder{
		ID:         uuid.NewString(),
		PositionID: p.ID,
		Mode:       t.mode,
		Symbol:     t.symbol,
		Side:       models.OrderClose,
		Direction:  p.Direction,
		EntryPrice: p.EntryPrice,
		ExitPrice:  price,
		Size:       p.Size,
		Leverage:   p.Leverage,
		Fee:        plan.CloseFee,
		PnL:        plan.PnL,
		ROE:        plan.ROE,
		Reason:     reason,
		Ts:         t.now().UnixMilli(),
	}
	t.recordLocked(order)
	t.persistLocked(ctx)

	metrics.Trades.WithLabelValues(string(t.mode), string(models.OrderClose), string(reason)).Inc()
	t.log.Info("position closed",
		zap.String("id", p.ID),
		zap.String("reason", string(reason)),
		zap.Float64("exit", price),
		zap.Float64("pnl", plan.PnL),
		zap.Float64("roe", plan.ROE),
		zap.Float64("balance", t.state.Balance),
	)
	t.journalRecord(ctx, order)
	t.out.Enqueue(notify.QuantClose(t.mode, order, t.state.Balance, t.notifyMeta()))
}

func (t *Trader) indexLocked(id string) int {
	for i, p := range t.state.Positions {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (t *Trader) recordLocked(o models.TradeOrder) {
	t.state.Orders = append(t.state.Orders, o)
	if n := len(t.state.Orders); n > maxOrders {
		t.state.Orders = append([]models.TradeOrder(nil), t.state.Orders[n-maxOrders:]...)
	}
	t.state.LastUpdate = t.now().UnixMilli()
}

// persistLocked только paper; live-ключ не пишется никогда. Под mu берётся
// лишь копия, запись в KV идёт в фоне, промежуточные снимки схлопываются.
func (t *Trader) persistLocked(ctx context.Context) {
	if t.mode != models.ModePaper {
		return
	}
	st := t.copyStateLocked()
	t.persistMu.Lock()
	t.pending = &st
	start := !t.persisting
	t.persisting = true
	t.persistMu.Unlock()
	if start {
		bg := context.WithoutCancel(ctx)
		t.spawn(func() { t.flushState(bg) })
	}
}

func (t *Trader) flushState(ctx context.Context) {
	key := kvstore.KeyQuantState(t.mode, t.symbol)
	for {
		t.persistMu.Lock()
		st := t.pending
		t.pending = nil
		if st == nil {
			t.persisting = false
			t.persistMu.Unlock()
			return
		}
		t.persistMu.Unlock()

		pctx, cancel := context.WithTimeout(ctx, persistTimeout)
		if err := kvstore.SetJSON(pctx, t.kv, key, st, 0); err != nil {
			t.log.Warn("persist quant state failed", zap.Error(err))
		}
		cancel()
	}
}

func (t *Trader) journalRecord(ctx context.Context, o models.TradeOrder) {
	if t.journal != nil {
		t.journal.Record(ctx, o)
	}
}

func (t *Trader) notifyMeta() models.NotifyMeta {
	if t.cfgSrc == nil {
		return models.NotifyMeta{Level: models.LevelTimeSensitive}
	}
	return notify.MetaFrom(t.cfgSrc.Current().Notification)
}

// State копия состояния.
func (t *Trader) State() models.QuantState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copyStateLocked()
}

func (t *Trader) copyStateLocked() models.QuantState {
	st := t.state
	st.Positions = append([]models.QuantPosition(nil), t.state.Positions...)
	st.Orders = append([]models.TradeOrder(nil), t.state.Orders...)
	return st
}
