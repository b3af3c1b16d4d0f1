package alerts

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/alerts/service"
	"market_monitor/internal/modules/configstore"
	notify "market_monitor/internal/modules/notifier/service"
)

func NewEngine(d *notify.Dispatcher, cs *configstore.Store, log *zap.Logger) *service.Engine {
	return service.NewEngine(d, cs, log.Named("alerts"))
}

func Module() fx.Option {
	return fx.Module("alerts",
		fx.Provide(NewEngine),
		fx.Invoke(func(lc fx.Lifecycle, e *service.Engine) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						e.RunRemovals(ctx)
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
