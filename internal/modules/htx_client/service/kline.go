package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"market_monitor/internal/models"
)

const klinePath = "/linear-swap-ex/market/history/kline"

var klinePeriods = map[string]struct{}{
	"1min": {}, "5min": {}, "15min": {}, "30min": {}, "60min": {}, "4hour": {}, "1day": {}, "1week": {},
}

// Kline публичные свечи, от новой к старой.
func (c *Client) Kline(ctx context.Context, symbol, period string, size int) ([]models.Candle, error) {
	if _, ok := klinePeriods[period]; !ok {
		return nil, fmt.Errorf("kline period %q not supported", period)
	}
	if size <= 0 || size > 2000 {
		return nil, fmt.Errorf("kline size %d out of range", size)
	}

	q := url.Values{}
	q.Set("contract_code", symbol)
	q.Set("period", period)
	q.Set("size", strconv.Itoa(size))

	var resp struct {
		Data []models.Candle `json:"data"`
	}
	if err := c.do(ctx, "GET", klinePath, q, nil, false, &resp); err != nil {
		return nil, err
	}

	// биржа отдаёт от старой к новой
	out := make([]models.Candle, len(resp.Data))
	for i, k := range resp.Data {
		out[len(resp.Data)-1-i] = k
	}
	return out, nil
}
