package quant

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/configstore"
	htx "market_monitor/internal/modules/htx_client/service"
	"market_monitor/internal/modules/journal"
	"market_monitor/internal/modules/kvstore"
	notify "market_monitor/internal/modules/notifier/service"
	"market_monitor/internal/modules/quant/service"
	"market_monitor/internal/modules/snapshot"
	strategy "market_monitor/internal/modules/strategy/service"
)

const loadTimeout = 5 * time.Second

// NewTrader режим, символ и плечо фиксируются при старте, поэтому документ
// читается здесь, до OnStart остальных модулей.
func NewTrader(
	kv kvstore.Store,
	cs *configstore.Store,
	advisor *strategy.Advisor,
	client *htx.Client,
	j *journal.Journal,
	d *notify.Dispatcher,
	log *zap.Logger,
) *service.Trader {
	log = log.Named("quant")
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if _, _, err := cs.Load(ctx); err != nil {
		log.Warn("config not loaded, quant starts from defaults", zap.Error(err))
	}
	return service.NewTrader(service.Deps{
		KV:      kv,
		Signals: advisor,
		Venue:   client,
		Journal: j,
		Out:     d,
		Config:  cs,
		Log:     log,
	}, cs.Current().Quant)
}

func Module() fx.Option {
	return fx.Module("quant",
		fx.Provide(NewTrader),
		fx.Invoke(func(lc fx.Lifecycle, t *service.Trader, cs *configstore.Store, snap *snapshot.Snapshot, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{}, 2)
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if err := t.Load(startCtx); err != nil {
						log.Warn("quant state not restored", zap.Error(err))
					}
					updates, unsubscribe := cs.Subscribe()
					go func() {
						defer func() { done <- struct{}{} }()
						t.Run(ctx, snap)
					}()
					go func() {
						defer func() { done <- struct{}{} }()
						defer unsubscribe()
						for {
							select {
							case <-ctx.Done():
								return
							case _, ok := <-updates:
								if !ok {
									return
								}
								t.OnConfigUpdate()
							}
						}
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					for i := 0; i < 2; i++ {
						select {
						case <-done:
						case <-stopCtx.Done():
							return nil
						}
					}
					return nil
				},
			})
		}),
	)
}
