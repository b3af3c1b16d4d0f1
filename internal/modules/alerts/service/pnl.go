package service

import (
	"strings"

	"market_monitor/internal/helper"
	"market_monitor/internal/models"
)

var defaultContractSizes = map[string]float64{
	"BTC": 0.001,
	"ETH": 0.01,
}

// SymbolMeta размер контракта по базовому активу; документ может переопределить таблицу.
type SymbolMeta struct {
	overrides map[string]float64
}

func NewSymbolMeta(overrides map[string]float64) SymbolMeta {
	norm := make(map[string]float64, len(overrides))
	for k, v := range overrides {
		if v > 0 {
			norm[strings.ToUpper(k)] = v
		}
	}
	return SymbolMeta{overrides: norm}
}

func (m SymbolMeta) ContractSize(symbol string) float64 {
	base := helper.BaseAsset(symbol)
	if v, ok := m.overrides[base]; ok {
		return v
	}
	if v, ok := defaultContractSizes[base]; ok {
		return v
	}
	return 1
}

// PnLResult метрики позиции на цене last. ROE в процентах, PriceDlt доля.
type PnLResult struct {
	PriceDlt float64
	PnL      float64
	ROE      float64
	HasROE   bool
}

// ComputePnL pnl = (last - cost) * volume * contractSize для long, зеркально для short.
func ComputePnL(p models.Position, last, contractSize float64) PnLResult {
	if p.CostOpen <= 0 {
		return PnLResult{}
	}
	diff := last - p.CostOpen
	if p.Direction == models.DirectionShort {
		diff = -diff
	}
	res := PnLResult{
		PriceDlt: diff / p.CostOpen,
		PnL:      diff * p.Volume * contractSize,
	}
	if p.PositionMargin > 0 {
		res.ROE = res.PnL / p.PositionMargin * 100
		res.HasROE = true
	}
	return res
}
