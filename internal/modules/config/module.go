package config

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/pkg/logger"
)

// NewLogger один логгер на процесс, компоненты берут log.Named(...).
func NewLogger(cfg *Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Service:    "market_monitor",
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
	})
}

func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
			NewLogger,
		),
	)
}
