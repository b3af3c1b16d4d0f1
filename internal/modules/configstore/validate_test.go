package configstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"market_monitor/internal/models"
)

func TestValidateDefaultIsValid(t *testing.T) {
	doc := Default(Seed{QuantMode: models.ModeLive, QuantSymbol: "BTC-USDT"})
	assert.NoError(t, Validate(&doc))
	assert.False(t, doc.Quant.TestMode)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(d *models.ConfigDoc){
		"zero window":      func(d *models.ConfigDoc) { d.PriceChange.Windows[0].DurationMs = 0 },
		"negative pct":     func(d *models.ConfigDoc) { d.PriceChange.Windows[0].PctThreshold = -1 },
		"leverage below 1": func(d *models.ConfigDoc) { d.Quant.Leverage = 0.5 },
		"position size 0":  func(d *models.ConfigDoc) { d.Quant.PositionSize = 0 },
		"bad direction": func(d *models.ConfigDoc) {
			d.Targets = []models.TargetRule{{Symbol: "X", TargetPrice: 1, Direction: "sideways"}}
		},
		"negative range": func(d *models.ConfigDoc) {
			d.Targets = []models.TargetRule{{Symbol: "X", TargetPrice: 1, Direction: models.TargetAbove, RangePercent: -0.1}}
		},
		"lo above hi":     func(d *models.ConfigDoc) { d.PnL.LoPct = 20 },
		"bad kline":       func(d *models.ConfigDoc) { d.Quant.KlinePeriod = "2min" },
		"bad level":       func(d *models.ConfigDoc) { d.Notification.Level = "loud" },
		"zero contract":   func(d *models.ConfigDoc) { d.ContractSizes = map[string]float64{"BTC": 0} },
		"confidence >100": func(d *models.ConfigDoc) { d.Quant.MinConfidence = 101 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			doc := Default(Seed{})
			mutate(&doc)
			assert.ErrorIs(t, Validate(&doc), ErrInvalid)
		})
	}
}
