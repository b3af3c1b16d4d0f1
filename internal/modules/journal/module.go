package journal

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/pkg/db"
)

func NewJournal(m *db.PgTxManager, log *zap.Logger) *Journal {
	if m == nil {
		return New(nil, log.Named("journal"))
	}
	return New(m, log.Named("journal"))
}

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(NewJournal),
		fx.Invoke(func(lc fx.Lifecycle, j *Journal, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := j.EnsureSchema(ctx); err != nil {
						log.Warn("journal schema unavailable, trades will not be journaled", zap.Error(err))
					}
					return nil
				},
			})
		}),
	)
}
