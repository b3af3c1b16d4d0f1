package configstore

import (
	"market_monitor/internal/helper"
	"market_monitor/internal/models"
)

// Seed параметры первичного документа из окружения процесса.
type Seed struct {
	QuantMode   models.QuantMode
	QuantSymbol string
}

// Default документ, который кладётся в KV при первом запуске.
func Default(seed Seed) models.ConfigDoc {
	symbol := helper.NormSymbol(seed.QuantSymbol)
	if symbol == "" {
		symbol = "ETH-USDT"
	}
	return models.ConfigDoc{
		Version:      1,
		WatchSymbols: []string{"BTC-USDT", "ETH-USDT"},
		PriceChange: models.PriceChangeConfig{
			Enabled: true,
			Windows: []models.PriceWindow{
				{DurationMs: 60_000, PctThreshold: 1, AbsThreshold: 0, Label: "1m"},
				{DurationMs: 300_000, PctThreshold: 2, AbsThreshold: 0, Label: "5m"},
				{DurationMs: 900_000, PctThreshold: 3, AbsThreshold: 0, Label: "15m"},
			},
			MinNotifyIntervalMs: 120_000,
		},
		Targets: []models.TargetRule{},
		PnL: models.PnLConfig{
			Enabled:          true,
			HiPct:            10,
			LoPct:            -10,
			RepeatIntervalMs: 60_000,
			EnableHi:         true,
			EnableLo:         true,
		},
		Notification: models.NotificationConfig{
			Level:         models.LevelTimeSensitive,
			Group:         "monitor",
			DedupWindowMs: 30_000,
		},
		Quant: models.QuantConfig{
			Enabled:               false,
			TestMode:              seed.QuantMode != models.ModeLive,
			Symbol:                symbol,
			Leverage:              10,
			InitialBalance:        1000,
			PositionSize:          0.1,
			StopLoss:              0.2,
			TakeProfit:            0.4,
			TrailingStop:          0.1,
			MaxPositions:          1,
			MinConfidence:         60,
			SignalCheckIntervalMs: 30_000,
			TakerFee:              0.0005,
			KlinePeriod:           "15min",
			KlineSize:             200,
		},
	}
}
