package bootstrap

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/helper"
	"market_monitor/internal/modules/bootstrap/service"
	"market_monitor/internal/modules/configstore"
	htx "market_monitor/internal/modules/htx_client/service"
	"market_monitor/internal/modules/snapshot"
)

const warmupTimeout = 20 * time.Second

func NewWarmuper(c *htx.Client, snap *snapshot.Snapshot, log *zap.Logger) *service.Warmuper {
	return service.NewWarmuper(c, snap, log.Named("bootstrap"))
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(NewWarmuper),
		fx.Invoke(func(lc fx.Lifecycle, cs *configstore.Store, wu *service.Warmuper, log *zap.Logger) {
			ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer cancel()
						doc := cs.Current()
						syms := helper.UniqueSorted(append(append([]string(nil), doc.WatchSymbols...), doc.Quant.Symbol))
						n, err := wu.Warmup(ctx, syms)
						if err != nil {
							log.Warn("price warmup incomplete", zap.Int("seeded", n), zap.Error(err))
							return
						}
						log.Info("price warmup done", zap.Int("symbols", n))
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
