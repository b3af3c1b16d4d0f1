package configstore

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/models"
	"market_monitor/internal/modules/config"
	"market_monitor/internal/modules/kvstore"
)

func NewStore(kv kvstore.Store, cfg *config.Config, log *zap.Logger) *Store {
	return New(kv, Seed{
		QuantMode:   models.QuantMode(cfg.QuantModeDefault),
		QuantSymbol: cfg.QuantSymbolDefault,
	}, log.Named("configstore"))
}

func Module() fx.Option {
	return fx.Module("configstore",
		fx.Provide(NewStore),
		fx.Invoke(func(lc fx.Lifecycle, s *Store, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if _, _, err := s.Load(startCtx); err != nil {
						// стартуем на дефолтах, опрос догонит
						log.Warn("initial config load failed, using defaults", zap.Error(err))
					}
					go func() {
						defer close(done)
						s.Watch(ctx, DefaultPollInterval)
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
