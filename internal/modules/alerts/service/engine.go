package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"market_monitor/internal/metrics"
	"market_monitor/internal/models"
	notify "market_monitor/internal/modules/notifier/service"
)

const (
	mutateTimeout = 5 * time.Second
	removalQueue  = 64
)

// Enqueuer очередь уведомлений, не блокирует.
type Enqueuer interface {
	Enqueue(n models.Notification) bool
}

// ConfigMutator read-modify-write живого документа.
type ConfigMutator interface {
	Mutate(ctx context.Context, fn func(doc *models.ConfigDoc) error) (*models.ConfigDoc, error)
}

// Engine детектор изменения цены, растяжки и P&L. Владеет таблицами состояний,
// поэтому все методы, кроме RunRemovals, зовутся из одной горутины.
type Engine struct {
	out     Enqueuer
	mutator ConfigMutator
	log     *zap.Logger

	// снятие notifyOnce правил пишет в KV отдельная горутина;
	// неудачные возвращаются через restores и применяются на горутине тиков
	removals chan models.TargetRule
	restores chan models.TargetRule

	det       *Detector
	pricePol  *Policy
	pnlPol    *Policy
	targets   *Targets
	positions map[models.PosKey]models.Position
}

func NewEngine(out Enqueuer, mutator ConfigMutator, log *zap.Logger) *Engine {
	return &Engine{
		out:       out,
		mutator:   mutator,
		log:       log,
		removals:  make(chan models.TargetRule, removalQueue),
		restores:  make(chan models.TargetRule, removalQueue),
		det:       NewDetector(),
		pricePol:  NewPolicy(),
		pnlPol:    NewPolicy(),
		targets:   NewTargets(log),
		positions: make(map[models.PosKey]models.Position),
	}
}

// SetPositions полная карта позиций; у закрытых сбрасывается состояние политики.
func (e *Engine) SetPositions(list []models.Position) {
	next := make(map[models.PosKey]models.Position, len(list))
	for _, p := range list {
		next[p.Key()] = p
	}
	for k := range e.positions {
		if _, ok := next[k]; !ok {
			e.pnlPol.Forget(k.String())
		}
	}
	e.positions = next
}

// OnConfig новая версия документа.
func (e *Engine) OnConfig(doc *models.ConfigDoc) {
	e.drainRestores()
	e.targets.Sync(doc.Targets)
	watched := make(map[string]struct{}, len(doc.WatchSymbols))
	for _, s := range doc.WatchSymbols {
		watched[s] = struct{}{}
	}
	for _, key := range e.pricePol.Keys() {
		if _, ok := watched[key]; !ok {
			e.pricePol.Forget(key)
			e.det.Forget(key)
		}
	}
}

// OnTick прогоняет тик через C8, C9, C10.
func (e *Engine) OnTick(_ context.Context, t models.Tick, doc *models.ConfigDoc) {
	e.drainRestores()
	now := t.TsMs()
	meta := notify.MetaFrom(doc.Notification)

	if doc.PriceChange.Enabled && contains(doc.WatchSymbols, t.Symbol) {
		e.priceChange(t, now, doc, meta)
	}
	e.targetHits(t, now, doc, meta)
	if doc.PnL.Enabled {
		e.pnl(t, now, doc, meta)
	}
}

func (e *Engine) priceChange(t models.Tick, now int64, doc *models.ConfigDoc, meta models.NotifyMeta) {
	ev, ok := e.det.Observe(t.Symbol, t.Price, now, doc.PriceChange.Windows)
	if !ok {
		return
	}
	th := WindowThresholds(ev.Window, doc.PriceChange.MinNotifyIntervalMs)
	m := M(ev.Pct, ev.Abs)
	if !ev.Tripped {
		e.pricePol.Relax(t.Symbol, m, th)
		return
	}
	d := e.pricePol.Evaluate(t.Symbol, m, th, now)
	if !d.Fire {
		return
	}
	metrics.Alerts.WithLabelValues("price").Inc()
	e.log.Info("price change",
		zap.String("symbol", t.Symbol),
		zap.String("window", ev.Window.Label),
		zap.Float64("pct", ev.Pct),
		zap.Float64("abs", ev.Abs),
		zap.String("reason", string(d.Reason)),
	)
	e.out.Enqueue(notify.PriceChange(ev, meta))
}

func (e *Engine) targetHits(t models.Tick, now int64, doc *models.ConfigDoc, meta models.NotifyMeta) {
	hits := e.targets.Evaluate(t.Symbol, t.Price, now, doc.Targets)
	for _, h := range hits {
		metrics.Alerts.WithLabelValues("target").Inc()
		e.log.Info("target hit",
			zap.String("id", h.Rule.ID),
			zap.String("symbol", h.Rule.Symbol),
			zap.Float64("target", h.Rule.TargetPrice),
			zap.Float64("price", h.Price),
		)
		e.out.Enqueue(notify.TargetHit(h, meta))
		if h.Once {
			e.removeRule(h.Rule)
		}
	}
}

// removeRule ставит notifyOnce правило в очередь на снятие; тик не ждёт KV.
func (e *Engine) removeRule(rule models.TargetRule) {
	if e.mutator == nil {
		return
	}
	select {
	case e.removals <- rule:
	default:
		e.log.Warn("notifyOnce removal queue full", zap.String("id", rule.ID))
		e.targets.Restore(rule)
	}
}

// RunRemovals снимает правила в живом документе, не трогая остальное.
// Живёт до отмены ctx.
func (e *Engine) RunRemovals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rule := <-e.removals:
			if err := e.deleteRule(ctx, rule); err != nil {
				e.log.Error("remove notifyOnce rule failed", zap.String("id", rule.ID), zap.Error(err))
				select {
				case e.restores <- rule:
				default:
					e.log.Warn("notifyOnce restore queue full", zap.String("id", rule.ID))
				}
			}
		}
	}
}

func (e *Engine) deleteRule(ctx context.Context, rule models.TargetRule) error {
	mctx, cancel := context.WithTimeout(ctx, mutateTimeout)
	defer cancel()
	_, err := e.mutator.Mutate(mctx, func(doc *models.ConfigDoc) error {
		kept := doc.Targets[:0]
		for _, r := range doc.Targets {
			if !SameRule(r, rule) {
				kept = append(kept, r)
			}
		}
		doc.Targets = kept
		return nil
	})
	return err
}

func (e *Engine) drainRestores() {
	for {
		select {
		case r := <-e.restores:
			e.targets.Restore(r)
		default:
			return
		}
	}
}

func (e *Engine) pnl(t models.Tick, now int64, doc *models.ConfigDoc, meta models.NotifyMeta) {
	sm := NewSymbolMeta(doc.ContractSizes)
	th := PnLThresholds(doc.PnL)
	for _, dir := range []models.Direction{models.DirectionLong, models.DirectionShort} {
		pos, ok := e.positions[models.PosKey{Contract: t.Symbol, Direction: dir}]
		if !ok || pos.Volume <= 0 {
			continue
		}
		res := ComputePnL(pos, t.Price, sm.ContractSize(t.Symbol))
		m := Metric{Amt: &res.PnL}
		if res.HasROE {
			m.Pct = &res.ROE
		}
		key := pos.Key().String()
		d := e.pnlPol.Evaluate(key, m, th, now)
		if !d.Fire {
			continue
		}
		metrics.Alerts.WithLabelValues("pnl").Inc()
		ev := models.PnLEvent{
			Position: pos,
			Last:     t.Price,
			PnL:      res.PnL,
			ROE:      res.ROE,
			PriceDlt: res.PriceDlt,
			Band:     d.Band,
			Reason:   d.Reason,
		}
		e.log.Info("pnl threshold",
			zap.String("key", key),
			zap.Float64("roe", res.ROE),
			zap.Float64("pnl", res.PnL),
			zap.String("band", string(d.Band)),
			zap.String("reason", string(d.Reason)),
		)
		e.out.Enqueue(notify.PnL(ev, meta))
	}
}

// PnLState состояние политики по позиции, для отладки и тестов.
func (e *Engine) PnLState(key models.PosKey) (models.ThresholdState, bool) {
	return e.pnlPol.State(key.String())
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
