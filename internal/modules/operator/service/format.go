package service

import (
	"fmt"
	"strings"
	"time"

	"market_monitor/internal/models"
)

func FormatStatus(st *models.QuantStatus) string {
	var sb strings.Builder
	state := "⏸ выключен"
	if st.Enabled {
		state = "▶️ работает"
	}
	fmt.Fprintf(&sb, "🤖 %s [%s] %s\n", st.Symbol, st.Mode, state)
	fmt.Fprintf(&sb, "Баланс: %.2f USDT, цена %.4f\n", st.Balance, st.LastPrice)

	s := st.Stats
	winRate := 0.0
	if s.TotalTrades > 0 {
		winRate = float64(s.WinTrades) / float64(s.TotalTrades) * 100
	}
	fmt.Fprintf(&sb, "Сделок: %d (win %.0f%%), P&L %.2f, комиссии %.2f, просадка %.2f%%\n",
		s.TotalTrades, winRate, s.TotalProfit, s.TotalFees, s.MaxDrawdown*100)

	if len(st.Positions) == 0 {
		sb.WriteString("📭 Позиций нет")
	} else {
		sb.WriteString("📊 Позиции:")
		for _, p := range st.Positions {
			fmt.Fprintf(&sb, "\n- %s %.4f @ %.4f x%.0f", strings.ToUpper(string(p.Direction)), p.Size, p.EntryPrice, p.Leverage)
		}
	}
	if st.UpdatedAt > 0 {
		fmt.Fprintf(&sb, "\nОбновлено: %s", time.UnixMilli(st.UpdatedAt).UTC().Format("15:04:05 UTC"))
	}
	return sb.String()
}
