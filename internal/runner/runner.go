package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"market_monitor/internal/helper"
	"market_monitor/internal/models"
)

// PriceBook снапшот цен и позиций.
type PriceBook interface {
	SetPrice(symbol string, price float64, ts int64)
	SetPositions(list []models.Position, ts int64)
	PositionSymbols() []string
}

type AlertEngine interface {
	OnTick(ctx context.Context, t models.Tick, doc *models.ConfigDoc)
	OnConfig(doc *models.ConfigDoc)
	SetPositions(list []models.Position)
}

type Trader interface {
	Symbol() string
	OnTick(ctx context.Context, t models.Tick)
	Reconcile(venue []models.Position)
}

type Subscriber interface {
	UpdateSubscriptions(desired []string) (added, removed []string)
}

type ConfigSource interface {
	Current() *models.ConfigDoc
	Subscribe() (<-chan *models.ConfigDoc, func())
}

type Health interface {
	TouchTick(t time.Time)
}

type Deps struct {
	Ticks     <-chan models.Tick
	Positions <-chan models.PositionsUpdate
	Config    ConfigSource
	Book      PriceBook
	Alerts    AlertEngine
	Trader    Trader
	Market    Subscriber
	Health    Health
	Log       *zap.Logger
}

// Runner единственный потребитель тиков и позиций: всё состояние детекторов
// меняется из одной горутины, поэтому порядок событий сохраняется.
type Runner struct {
	d Deps

	mu         sync.Mutex
	positioned []string
}

func New(d Deps) *Runner {
	return &Runner{d: d}
}

// Desired символы рынка: наблюдаемые, с открытыми позициями и символ кванта.
func (r *Runner) Desired(doc *models.ConfigDoc) []string {
	r.mu.Lock()
	positioned := append([]string(nil), r.positioned...)
	r.mu.Unlock()

	all := make([]string, 0, len(doc.WatchSymbols)+len(positioned)+1)
	all = append(all, doc.WatchSymbols...)
	all = append(all, positioned...)
	if r.d.Trader != nil {
		all = append(all, r.d.Trader.Symbol())
	}
	return helper.UniqueSorted(all)
}

func (r *Runner) resubscribe(doc *models.ConfigDoc) {
	added, removed := r.d.Market.UpdateSubscriptions(r.Desired(doc))
	if len(added) > 0 || len(removed) > 0 {
		r.d.Log.Info("market subscriptions changed",
			zap.Strings("added", added),
			zap.Strings("removed", removed),
		)
	}
}

func (r *Runner) OnTick(ctx context.Context, t models.Tick) {
	r.d.Book.SetPrice(t.Symbol, t.Price, t.TsMs())
	if r.d.Health != nil {
		r.d.Health.TouchTick(t.ReceivedAt)
	}
	r.d.Alerts.OnTick(ctx, t, r.d.Config.Current())
	if r.d.Trader != nil {
		r.d.Trader.OnTick(ctx, t)
	}
}

func (r *Runner) OnPositions(u models.PositionsUpdate) {
	r.d.Book.SetPositions(u.Positions, u.ReceivedAt.UnixMilli())
	r.d.Alerts.SetPositions(u.Positions)
	if r.d.Trader != nil {
		r.d.Trader.Reconcile(u.Positions)
	}

	r.mu.Lock()
	r.positioned = r.d.Book.PositionSymbols()
	r.mu.Unlock()
	r.resubscribe(r.d.Config.Current())
}

func (r *Runner) OnConfig(doc *models.ConfigDoc) {
	r.d.Alerts.OnConfig(doc)
	r.resubscribe(doc)
}

// Run цикл до отмены ctx или закрытия потока тиков.
func (r *Runner) Run(ctx context.Context) {
	updates, unsubscribe := r.d.Config.Subscribe()
	defer unsubscribe()

	r.OnConfig(r.d.Config.Current())
	r.d.Log.Info("runner started")

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-r.d.Ticks:
			if !ok {
				r.d.Log.Warn("tick stream closed")
				return
			}
			r.OnTick(ctx, t)
		case u, ok := <-r.d.Positions:
			if !ok {
				r.d.Positions = nil
				continue
			}
			r.OnPositions(u)
		case doc, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			r.OnConfig(doc)
		}
	}
}
