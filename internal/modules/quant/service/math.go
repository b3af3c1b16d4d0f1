package service

import (
	"math"

	"market_monitor/internal/models"
)

// PriceDelta доля движения цены в пользу позиции.
func PriceDelta(dir models.Direction, entry, last float64) float64 {
	if entry <= 0 {
		return 0
	}
	if dir == models.DirectionShort {
		return (entry - last) / entry
	}
	return (last - entry) / entry
}

// ROE доля от маржи: priceΔ · leverage.
func ROE(p models.QuantPosition, last float64) float64 {
	return PriceDelta(p.Direction, p.EntryPrice, last) * p.Leverage
}

// ExitReason порядок проверки: стоп, тейк, трейлинг.
func ExitReason(p models.QuantPosition, last float64, cfg models.QuantConfig) models.CloseReason {
	roe := ROE(p, last)
	if cfg.StopLoss > 0 && roe <= -cfg.StopLoss {
		return models.ReasonStopLoss
	}
	if cfg.TakeProfit > 0 && roe >= cfg.TakeProfit {
		return models.ReasonTakeProfit
	}
	if cfg.TrailingStop > 0 && trailingHit(p, last) >= cfg.TrailingStop {
		return models.ReasonTrailingStop
	}
	return models.ReasonNone
}

// trailingHit откат от экстремума в единицах ROE.
func trailingHit(p models.QuantPosition, last float64) float64 {
	switch p.Direction {
	case models.DirectionLong:
		if p.HighestPrice == nil || *p.HighestPrice <= 0 {
			return 0
		}
		return (*p.HighestPrice - last) / *p.HighestPrice * p.Leverage
	case models.DirectionShort:
		if p.LowestPrice == nil || *p.LowestPrice <= 0 {
			return 0
		}
		return (last - *p.LowestPrice) / *p.LowestPrice * p.Leverage
	}
	return 0
}

// OfflineReason проверка после рестарта: только стоп и тейк.
func OfflineReason(p models.QuantPosition, last float64, cfg models.QuantConfig) models.CloseReason {
	roe := ROE(p, last)
	switch {
	case cfg.StopLoss > 0 && roe <= -cfg.StopLoss:
		return models.ReasonStopOffline
	case cfg.TakeProfit > 0 && roe >= cfg.TakeProfit:
		return models.ReasonTakeOffline
	}
	return models.ReasonNone
}

// trackExtremes обновляет highest для long и lowest для short.
func trackExtremes(p *models.QuantPosition, last float64) {
	switch p.Direction {
	case models.DirectionLong:
		if p.HighestPrice == nil || last > *p.HighestPrice {
			v := last
			p.HighestPrice = &v
		}
	case models.DirectionShort:
		if p.LowestPrice == nil || last < *p.LowestPrice {
			v := last
			p.LowestPrice = &v
		}
	}
}

// OpenPlan параметры входа.
type OpenPlan struct {
	Margin float64
	Size   float64
	Value  float64
	Fee    float64
	Volume int64
}

// PlanOpen margin = balance·positionSize, size = margin·leverage/price, fee = margin·leverage·takerFee.
func PlanOpen(balance, price float64, cfg models.QuantConfig) OpenPlan {
	margin := balance * cfg.PositionSize
	value := margin * cfg.Leverage
	return OpenPlan{
		Margin: margin,
		Size:   value / price,
		Value:  value,
		Fee:    value * cfg.TakerFee,
	}
}

// PlanOpenContracts то же, но размер округлён вниз до целых контрактов.
func PlanOpenContracts(balance, price, contractSize float64, cfg models.QuantConfig) OpenPlan {
	plan := PlanOpen(balance, price, cfg)
	if contractSize <= 0 {
		return OpenPlan{}
	}
	vol := int64(math.Floor(plan.Size/contractSize + 1e-9))
	if vol < 1 {
		return OpenPlan{}
	}
	size := float64(vol) * contractSize
	value := size * price
	return OpenPlan{
		Margin: value / cfg.Leverage,
		Size:   size,
		Value:  value,
		Fee:    value * cfg.TakerFee,
		Volume: vol,
	}
}

// ClosePlan итог закрытия.
type ClosePlan struct {
	PnLPre   float64
	CloseFee float64
	PnL      float64
	ROE      float64
}

// PlanClose pnlPre = priceΔ·value, closeFee = value·takerFee, pnl = pnlPre − closeFee.
func PlanClose(p models.QuantPosition, last, takerFee float64) ClosePlan {
	pre := PriceDelta(p.Direction, p.EntryPrice, last) * p.Value
	fee := p.Value * takerFee
	return ClosePlan{PnLPre: pre, CloseFee: fee, PnL: pre - fee, ROE: ROE(p, last)}
}

// applyClose баланс, статистика и просадка.
func applyClose(st *models.QuantState, pnl, closeFee float64) {
	st.Balance += pnl
	st.Stats.TotalTrades++
	if pnl > 0 {
		st.Stats.WinTrades++
	} else {
		st.Stats.LossTrades++
	}
	st.Stats.TotalProfit += pnl
	st.Stats.TotalFees += closeFee
	if st.Balance > st.Stats.PeakBalance {
		st.Stats.PeakBalance = st.Balance
	}
	if st.Stats.PeakBalance > 0 {
		dd := (st.Stats.PeakBalance - st.Balance) / st.Stats.PeakBalance
		if dd > st.Stats.MaxDrawdown {
			st.Stats.MaxDrawdown = dd
		}
	}
}

// TakeStopPrices триггеры TP/SL на бирже из ROE-порогов.
func TakeStopPrices(dir models.Direction, entry, leverage float64, cfg models.QuantConfig) (take, stop float64) {
	if leverage <= 0 {
		return 0, 0
	}
	tp := cfg.TakeProfit / leverage
	sl := cfg.StopLoss / leverage
	if dir == models.DirectionShort {
		if cfg.TakeProfit > 0 {
			take = entry * (1 - tp)
		}
		if cfg.StopLoss > 0 {
			stop = entry * (1 + sl)
		}
		return take, stop
	}
	if cfg.TakeProfit > 0 {
		take = entry * (1 + tp)
	}
	if cfg.StopLoss > 0 {
		stop = entry * (1 - sl)
	}
	return take, stop
}
