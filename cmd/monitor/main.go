package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"market_monitor/internal/modules/alerts"
	"market_monitor/internal/modules/bootstrap"
	"market_monitor/internal/modules/config"
	"market_monitor/internal/modules/configstore"
	"market_monitor/internal/modules/health"
	"market_monitor/internal/modules/htx_client"
	"market_monitor/internal/modules/htx_websocket"
	"market_monitor/internal/modules/journal"
	"market_monitor/internal/modules/kvstore"
	"market_monitor/internal/modules/notifier"
	"market_monitor/internal/modules/operator"
	"market_monitor/internal/modules/postgres"
	"market_monitor/internal/modules/quant"
	"market_monitor/internal/modules/snapshot"
	"market_monitor/internal/modules/strategy"
	"market_monitor/internal/runner"
	"market_monitor/pkg/tracing"
)

func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	_, closer, err := tracing.InitTracer(tracing.Config{
		ServiceName: "market_monitor",
		Host:        cfg.Jaeger.Host,
		Port:        cfg.Jaeger.Port,
	})
	if err != nil {
		return err
	}
	if cfg.Jaeger.Host != "" {
		log.Info("tracing enabled", zap.String("agent", cfg.Jaeger.Host))
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return closer.Close() },
	})
	return nil
}

func main() {
	fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		config.Module(),
		fx.Invoke(initTracing),
		kvstore.Module(),
		configstore.Module(),
		snapshot.Module(),
		notifier.Module(),
		alerts.Module(),
		health.Module(),
		htx_client.Module(),
		htx_websocket.Module(),
		strategy.Module(),
		bootstrap.Module(),
		postgres.Module(),
		journal.Module(),
		quant.Module(),
		operator.Module(),
		runner.Module(),
	).Run()
}
