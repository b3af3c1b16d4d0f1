package htx_client

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/config"
	"market_monitor/internal/modules/htx_client/service"
	"market_monitor/pkg/signer"
)

func NewClient(cfg *config.Config, log *zap.Logger) (*service.Client, error) {
	return service.NewClient(cfg.HTX.RestURL, signer.New(cfg.HTX.AccessKey, cfg.HTX.SecretKey), log.Named("htx_client"))
}

// Module REST-клиент биржи: свечи и ордера live-режима.
func Module() fx.Option {
	return fx.Module("htx_client",
		fx.Provide(NewClient),
	)
}
