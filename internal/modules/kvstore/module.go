package kvstore

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/config"
)

// NewStore redis при заданном REDIS_ADDR, иначе память процесса.
func NewStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) Store {
	log = log.Named("kvstore")
	if cfg.Redis.Addr == "" {
		log.Info("REDIS_ADDR is empty, using in-memory kv")
		return NewMemoryStore(cfg.KVNamespace)
	}

	rs := NewRedisStore(RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		Namespace: cfg.KVNamespace,
	}, log)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// kv мягкое состояние: недоступный redis не валит старт
			if err := rs.Ping(ctx); err != nil {
				log.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rs.Close()
		},
	})
	return rs
}

func Module() fx.Option {
	return fx.Module("kvstore",
		fx.Provide(NewStore),
	)
}
