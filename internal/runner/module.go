package runner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/models"
	alerts "market_monitor/internal/modules/alerts/service"
	"market_monitor/internal/modules/configstore"
	health "market_monitor/internal/modules/health/service"
	ws "market_monitor/internal/modules/htx_websocket/service"
	quant "market_monitor/internal/modules/quant/service"
	"market_monitor/internal/modules/snapshot"
)

func NewRunner(
	ticks chan models.Tick,
	positions chan models.PositionsUpdate,
	cs *configstore.Store,
	snap *snapshot.Snapshot,
	engine *alerts.Engine,
	trader *quant.Trader,
	market *ws.Market,
	st *health.State,
	log *zap.Logger,
) *Runner {
	return New(Deps{
		Ticks:     ticks,
		Positions: positions,
		Config:    cs,
		Book:      snap,
		Alerts:    engine,
		Trader:    trader,
		Market:    market,
		Health:    st,
		Log:       log.Named("runner"),
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(NewRunner),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						r.Run(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
