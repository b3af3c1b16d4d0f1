package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/config"
	"market_monitor/pkg/db"
)

const connectTimeout = 5 * time.Second

// NewTxManager пул Postgres; без DATABASE_DSN возвращает nil и журнал выключен.
func NewTxManager(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*db.PgTxManager, error) {
	if cfg.DB == "" {
		log.Info("postgres disabled: DATABASE_DSN is empty")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	poolMaster, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB, MaxConns: 4})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}
	if err := poolMaster.Ping(ctx); err != nil {
		poolMaster.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	m := db.NewPgTxManager(poolMaster, log.Named("postgres"))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m, nil
}

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(NewTxManager),
	)
}
