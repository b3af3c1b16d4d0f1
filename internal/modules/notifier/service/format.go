package service

import (
	"fmt"
	"strings"
	"time"

	"market_monitor/internal/helper"
	"market_monitor/internal/models"
)

// MetaFrom опции доставки из документа конфигурации.
func MetaFrom(cfg models.NotificationConfig) models.NotifyMeta {
	level := cfg.Level
	if level == "" {
		level = models.LevelTimeSensitive
	}
	return models.NotifyMeta{Sound: cfg.Sound, Level: level, Group: cfg.Group}
}

func arrow(v float64) string {
	if v >= 0 {
		return "📈"
	}
	return "📉"
}

func fmtPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.6f", p)
	}
}

func windowLabel(w models.PriceWindow) string {
	if w.Label != "" {
		return w.Label
	}
	return (time.Duration(w.DurationMs) * time.Millisecond).String()
}

func PriceChange(ev models.PriceChangeEvent, meta models.NotifyMeta) models.Notification {
	base := helper.BaseAsset(ev.Symbol)
	title := fmt.Sprintf("%s %s %+.2f%% за %s", arrow(ev.Pct), base, ev.Pct, windowLabel(ev.Window))
	body := fmt.Sprintf("%s → %s (Δ %+.4f)", fmtPrice(ev.BasePrice), fmtPrice(ev.Price), ev.Abs)
	meta.Group = groupOr(meta.Group, "price")
	return models.Notification{Title: title, Body: body, Meta: meta}
}

func TargetHit(hit models.TargetHit, meta models.NotifyMeta) models.Notification {
	base := helper.BaseAsset(hit.Rule.Symbol)
	dir := "выше"
	if hit.Rule.Direction == models.TargetBelow {
		dir = "ниже"
	}
	title := fmt.Sprintf("🎯 %s %s %s", base, dir, fmtPrice(hit.Rule.TargetPrice))
	var b strings.Builder
	fmt.Fprintf(&b, "Цена %s", fmtPrice(hit.Price))
	if hit.Rule.RangePercent > 0 {
		fmt.Fprintf(&b, ", диапазон %.2f%%", hit.Rule.RangePercent*100)
	}
	if hit.Once {
		b.WriteString(", правило снято")
	}
	meta.Group = groupOr(meta.Group, "target")
	return models.Notification{Title: title, Body: b.String(), Meta: meta}
}

func PnL(ev models.PnLEvent, meta models.NotifyMeta) models.Notification {
	p := ev.Position
	base := helper.BaseAsset(p.Contract)
	side := strings.ToUpper(string(p.Direction))
	title := fmt.Sprintf("%s %s %s ROE %+.2f%%", arrow(ev.ROE), base, side, ev.ROE)
	body := fmt.Sprintf("Объём %g, вход %s, цена %s\nPnL %+.2f USDT (%+.2f%%)",
		p.Volume, fmtPrice(p.CostOpen), fmtPrice(ev.Last), ev.PnL, ev.PriceDlt*100)
	meta.Group = groupOr(meta.Group, "pnl")
	return models.Notification{Title: title, Body: body, Meta: meta}
}

func QuantOpen(mode models.QuantMode, symbol string, pos models.QuantPosition, meta models.NotifyMeta) models.Notification {
	title := fmt.Sprintf("🤖 [%s] open %s %s", mode, strings.ToUpper(string(pos.Direction)), helper.BaseAsset(symbol))
	body := fmt.Sprintf("Вход %s, размер %.4f, x%g, маржа %.2f, комиссия %.4f",
		fmtPrice(pos.EntryPrice), pos.Size, pos.Leverage, pos.Margin, pos.OpenFee)
	if pos.SuggestionSnapshot != nil {
		body += fmt.Sprintf("\nСигнал %.0f%%: %s", pos.SuggestionSnapshot.Confidence, strings.Join(pos.SuggestionSnapshot.Reasons, "; "))
	}
	meta.Group = groupOr(meta.Group, "quant")
	return models.Notification{Title: title, Body: body, Meta: meta}
}

func QuantClose(mode models.QuantMode, order models.TradeOrder, balance float64, meta models.NotifyMeta) models.Notification {
	title := fmt.Sprintf("🤖 [%s] close %s %s: %s", mode, strings.ToUpper(string(order.Direction)),
		helper.BaseAsset(order.Symbol), order.Reason)
	body := fmt.Sprintf("%s → %s, PnL %+.2f (ROE %+.2f%%), баланс %.2f",
		fmtPrice(order.EntryPrice), fmtPrice(order.ExitPrice), order.PnL, order.ROE*100, balance)
	meta.Group = groupOr(meta.Group, "quant")
	return models.Notification{Title: title, Body: body, Meta: meta}
}

// Service служебное уведомление: переподключения, отказ ордера.
func Service(title, body string, meta models.NotifyMeta) models.Notification {
	meta.Group = groupOr(meta.Group, "service")
	meta.Level = models.LevelActive
	return models.Notification{Title: "⚙️ " + title, Body: body, Meta: meta}
}

func groupOr(group, def string) string {
	if group != "" {
		return group
	}
	return def
}
