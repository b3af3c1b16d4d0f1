package snapshot

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/kvstore"
)

func NewSnapshot(kv kvstore.Store, log *zap.Logger) *Snapshot {
	return New(kv, log.Named("snapshot"))
}

func Module() fx.Option {
	return fx.Module("snapshot",
		fx.Provide(NewSnapshot),
		fx.Invoke(func(lc fx.Lifecycle, s *Snapshot) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						s.Run(ctx, DefaultFlushInterval)
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
