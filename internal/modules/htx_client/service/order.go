package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"market_monitor/internal/models"
)

const (
	orderPath     = "/linear-swap-api/v1/swap_order"
	tpslPath      = "/linear-swap-api/v1/swap_tpsl_order"
	bestFivePrice = "optimal_5"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Offset string

const (
	OffsetOpen  Offset = "open"
	OffsetClose Offset = "close"
)

// OpenSide сторона ордера, открывающего позицию.
func OpenSide(d models.Direction) Side {
	if d == models.DirectionShort {
		return SideSell
	}
	return SideBuy
}

// CloseSide встречная сторона.
func CloseSide(d models.Direction) Side {
	if d == models.DirectionShort {
		return SideBuy
	}
	return SideSell
}

type OrderRequest struct {
	Contract  string
	Volume    int64
	Side      Side
	Offset    Offset
	LeverRate int
}

type OrderResult struct {
	OrderID string
}

type TPSLRequest struct {
	Contract string
	Volume   int64
	// Side встречная к позиции
	Side      Side
	TakePrice float64
	StopPrice float64
}

type TPSLResult struct {
	TakeOrderID string
	StopOrderID string
}

var errBadVolume = errors.New("order volume must be positive")

// price для биржи без float-хвостов.
func price(p float64) string { return decimal.NewFromFloat(p).Round(8).String() }

// PlaceOrder рыночный ордер лучшими пятью уровнями.
func (c *Client) PlaceOrder(ctx context.Context, r OrderRequest) (OrderResult, error) {
	if r.Volume <= 0 {
		return OrderResult{}, errBadVolume
	}
	body := map[string]any{
		"contract_code":    r.Contract,
		"volume":           r.Volume,
		"direction":        string(r.Side),
		"offset":           string(r.Offset),
		"lever_rate":       r.LeverRate,
		"order_price_type": bestFivePrice,
	}
	var resp struct {
		Data struct {
			OrderID    int64  `json:"order_id"`
			OrderIDStr string `json:"order_id_str"`
		} `json:"data"`
	}
	if err := c.do(ctx, "POST", orderPath, nil, body, true, &resp); err != nil {
		return OrderResult{}, err
	}
	id := resp.Data.OrderIDStr
	if id == "" {
		id = fmt.Sprint(resp.Data.OrderID)
	}
	c.log.Info("order placed",
		zap.String("contract", r.Contract),
		zap.String("side", string(r.Side)),
		zap.String("offset", string(r.Offset)),
		zap.Int64("volume", r.Volume),
		zap.String("order_id", id),
	)
	return OrderResult{OrderID: id}, nil
}

// PlaceTPSL парный тейк/стоп; нулевая цена не выставляется.
func (c *Client) PlaceTPSL(ctx context.Context, r TPSLRequest) (TPSLResult, error) {
	if r.Volume <= 0 {
		return TPSLResult{}, errBadVolume
	}
	if r.TakePrice <= 0 && r.StopPrice <= 0 {
		return TPSLResult{}, errors.New("tpsl: no trigger price")
	}
	body := map[string]any{
		"contract_code": r.Contract,
		"direction":     string(r.Side),
		"volume":        r.Volume,
	}
	if r.TakePrice > 0 {
		body["tp_trigger_price"] = price(r.TakePrice)
		body["tp_order_price_type"] = bestFivePrice
	}
	if r.StopPrice > 0 {
		body["sl_trigger_price"] = price(r.StopPrice)
		body["sl_order_price_type"] = bestFivePrice
	}
	var resp struct {
		Data struct {
			TPOrder *struct {
				OrderIDStr string `json:"order_id_str"`
			} `json:"tp_order"`
			SLOrder *struct {
				OrderIDStr string `json:"order_id_str"`
			} `json:"sl_order"`
		} `json:"data"`
	}
	if err := c.do(ctx, "POST", tpslPath, nil, body, true, &resp); err != nil {
		return TPSLResult{}, err
	}
	var out TPSLResult
	if resp.Data.TPOrder != nil {
		out.TakeOrderID = resp.Data.TPOrder.OrderIDStr
	}
	if resp.Data.SLOrder != nil {
		out.StopOrderID = resp.Data.SLOrder.OrderIDStr
	}
	return out, nil
}

// ClosePosition закрывает объём позиции рыночным ордером.
func (c *Client) ClosePosition(ctx context.Context, contract string, dir models.Direction, volume int64, leverRate int) (OrderResult, error) {
	return c.PlaceOrder(ctx, OrderRequest{
		Contract:  contract,
		Volume:    volume,
		Side:      CloseSide(dir),
		Offset:    OffsetClose,
		LeverRate: leverRate,
	})
}
