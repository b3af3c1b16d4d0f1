package configstore

import (
	"github.com/pkg/errors"

	"market_monitor/internal/helper"
	"market_monitor/internal/models"
)

// ErrInvalid документ не прошёл проверку, в KV не пишется.
var ErrInvalid = errors.New("config: invalid document")

var klinePeriods = map[string]struct{}{
	"1min": {}, "5min": {}, "15min": {}, "30min": {}, "60min": {}, "4hour": {}, "1day": {}, "1week": {},
}

// Validate проверяет документ целиком. Битые целевые правила не валят документ:
// они пропускаются при вычислении (см. alerts.TargetRules).
func Validate(doc *models.ConfigDoc) error {
	for i, w := range doc.PriceChange.Windows {
		if w.DurationMs <= 0 {
			return errors.Wrapf(ErrInvalid, "priceChange.windows[%d].durationMs must be > 0", i)
		}
		if w.PctThreshold < 0 || w.AbsThreshold < 0 {
			return errors.Wrapf(ErrInvalid, "priceChange.windows[%d] thresholds must be >= 0", i)
		}
	}
	if doc.PriceChange.MinNotifyIntervalMs < 0 {
		return errors.Wrap(ErrInvalid, "priceChange.minNotifyIntervalMs must be >= 0")
	}

	p := doc.PnL
	if p.RepeatIntervalMs < 0 {
		return errors.Wrap(ErrInvalid, "pnl.repeatIntervalMs must be >= 0")
	}
	if p.EnableHi && p.EnableLo && p.LoPct >= p.HiPct {
		return errors.Wrap(ErrInvalid, "pnl.loPct must be below pnl.hiPct")
	}
	if p.HiAmt != nil && p.LoAmt != nil && *p.LoAmt >= *p.HiAmt {
		return errors.Wrap(ErrInvalid, "pnl.loAmt must be below pnl.hiAmt")
	}

	for i, r := range doc.Targets {
		if r.Direction != models.TargetAbove && r.Direction != models.TargetBelow {
			return errors.Wrapf(ErrInvalid, "targets[%d].direction must be above|below", i)
		}
		if r.RangePercent < 0 {
			return errors.Wrapf(ErrInvalid, "targets[%d].rangePercent must be >= 0", i)
		}
		if r.NotifyIntervalSec < 0 {
			return errors.Wrapf(ErrInvalid, "targets[%d].notifyIntervalSec must be >= 0", i)
		}
	}

	switch doc.Notification.Level {
	case "", models.LevelPassive, models.LevelActive, models.LevelTimeSensitive:
	default:
		return errors.Wrapf(ErrInvalid, "notification.level %q", doc.Notification.Level)
	}

	for base, size := range doc.ContractSizes {
		if size <= 0 {
			return errors.Wrapf(ErrInvalid, "contractSizes.%s must be > 0", base)
		}
	}

	q := doc.Quant
	if q.Leverage < 1 {
		return errors.Wrap(ErrInvalid, "quant.leverage must be >= 1")
	}
	if q.PositionSize <= 0 || q.PositionSize > 1 {
		return errors.Wrap(ErrInvalid, "quant.positionSize must be in (0, 1]")
	}
	if q.StopLoss < 0 || q.TakeProfit < 0 || q.TrailingStop < 0 || q.TakerFee < 0 {
		return errors.Wrap(ErrInvalid, "quant stop/take/trailing/fee must be >= 0")
	}
	if q.MaxPositions < 1 {
		return errors.Wrap(ErrInvalid, "quant.maxPositions must be >= 1")
	}
	if q.MinConfidence < 0 || q.MinConfidence > 100 {
		return errors.Wrap(ErrInvalid, "quant.minConfidence must be in [0, 100]")
	}
	if q.SignalCheckIntervalMs <= 0 {
		return errors.Wrap(ErrInvalid, "quant.signalCheckIntervalMs must be > 0")
	}
	if q.InitialBalance <= 0 {
		return errors.Wrap(ErrInvalid, "quant.initialBalance must be > 0")
	}
	if helper.NormSymbol(q.Symbol) == "" {
		return errors.Wrap(ErrInvalid, "quant.symbol is empty")
	}
	if _, ok := klinePeriods[q.KlinePeriod]; !ok {
		return errors.Wrapf(ErrInvalid, "quant.klinePeriod %q", q.KlinePeriod)
	}
	if q.KlineSize < 1 || q.KlineSize > 2000 {
		return errors.Wrap(ErrInvalid, "quant.klineSize must be in [1, 2000]")
	}
	return nil
}

// normalize приводит символы к виду биржи.
func normalize(doc *models.ConfigDoc) {
	doc.WatchSymbols = helper.UniqueSorted(doc.WatchSymbols)
	doc.Quant.Symbol = helper.NormSymbol(doc.Quant.Symbol)
	for i := range doc.Targets {
		doc.Targets[i].Symbol = helper.NormSymbol(doc.Targets[i].Symbol)
	}
	if doc.Targets == nil {
		doc.Targets = []models.TargetRule{}
	}
}
