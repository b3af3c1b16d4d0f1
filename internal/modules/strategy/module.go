package strategy

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	htx "market_monitor/internal/modules/htx_client/service"
	"market_monitor/internal/modules/strategy/service"
)

func NewAdvisor(c *htx.Client, engine service.Engine, log *zap.Logger) *service.Advisor {
	return service.NewAdvisor(c, engine, log.Named("strategy"))
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			service.NewEngine,
			NewAdvisor,
		),
	)
}
