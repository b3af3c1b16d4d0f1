package operator

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/config"
	"market_monitor/internal/modules/configstore"
	"market_monitor/internal/modules/kvstore"
	"market_monitor/internal/modules/operator/service"
)

func NewOperator(kv kvstore.Store, cs *configstore.Store, log *zap.Logger) *service.Operator {
	return service.New(kv, cs, log.Named("operator"))
}

// NewBot чат-команды включаются вместе с telegram-каналом; nil, если он не настроен.
func NewBot(cfg *config.Config, op *service.Operator, log *zap.Logger) *service.Bot {
	log = log.Named("operator_bot")
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		return nil
	}
	b, err := service.NewBot(cfg.Telegram.Token, cfg.Telegram.APIBase, cfg.Telegram.ChatID, op, log)
	if err != nil {
		log.Warn("operator bot disabled", zap.Error(err))
		return nil
	}
	return b
}

func Module() fx.Option {
	return fx.Module("operator",
		fx.Provide(
			NewOperator,
			NewBot,
		),
		fx.Invoke(func(lc fx.Lifecycle, b *service.Bot) {
			if b == nil {
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						b.Start(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					b.Stop()
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
