package models

// QuantMode режим трейдера.
type QuantMode string

const (
	ModePaper QuantMode = "paper"
	ModeLive  QuantMode = "live"
)

// SignalAction решение стратегии.
type SignalAction string

const (
	ActionLong  SignalAction = "long"
	ActionShort SignalAction = "short"
	ActionHold  SignalAction = "hold"
)

// Signal ответ индикаторного коллаборатора.
type Signal struct {
	Action     SignalAction `json:"action"`
	Confidence float64      `json:"confidence"`
	Reasons    []string     `json:"reasons"`
	Price      float64      `json:"price,omitempty"`
	Ts         int64        `json:"ts,omitempty"`
}

// QuantPosition позиция симулятора/живого трейдера.
type QuantPosition struct {
	ID                 string    `json:"id"`
	Direction          Direction `json:"direction"`
	EntryPrice         float64   `json:"entryPrice"`
	Size               float64   `json:"size"`
	Margin             float64   `json:"margin"`
	Value              float64   `json:"value"` // margin * leverage
	Leverage           float64   `json:"leverage"`
	OpenTime           int64     `json:"openTime"`
	OpenFee            float64   `json:"openFee"`
	HighestPrice       *float64  `json:"highestPrice,omitempty"`
	LowestPrice        *float64  `json:"lowestPrice,omitempty"`
	SuggestionSnapshot *Signal   `json:"suggestionSnapshot,omitempty"`
	Volume             int64     `json:"volume,omitempty"` // контракты, только live
}

// CloseReason причина закрытия.
type CloseReason string

const (
	ReasonStopLoss     CloseReason = "stop-loss"
	ReasonTakeProfit   CloseReason = "take-profit"
	ReasonTrailingStop CloseReason = "trailing-stop"
	ReasonManual       CloseReason = "manual"
	ReasonStopOffline  CloseReason = "stop during offline"
	ReasonTakeOffline  CloseReason = "take during offline"
	ReasonNone         CloseReason = ""
)

// OrderSide open/close.
type OrderSide string

const (
	OrderOpen  OrderSide = "open"
	OrderClose OrderSide = "close"
)

// TradeOrder запись сделки.
type TradeOrder struct {
	ID         string      `json:"id"`
	PositionID string      `json:"positionId"`
	Mode       QuantMode   `json:"mode"`
	Symbol     string      `json:"symbol"`
	Side       OrderSide   `json:"side"`
	Direction  Direction   `json:"direction"`
	EntryPrice float64     `json:"entryPrice"`
	ExitPrice  float64     `json:"exitPrice,omitempty"`
	Size       float64     `json:"size"`
	Leverage   float64     `json:"leverage"`
	Fee        float64     `json:"fee"`
	PnL        float64     `json:"pnl,omitempty"`
	ROE        float64     `json:"roe,omitempty"`
	Reason     CloseReason `json:"reason,omitempty"`
	Ts         int64       `json:"ts"`
}

// QuantStats статистика.
type QuantStats struct {
	TotalTrades int     `json:"totalTrades"`
	WinTrades   int     `json:"winTrades"`
	LossTrades  int     `json:"lossTrades"`
	TotalProfit float64 `json:"totalProfit"`
	TotalFees   float64 `json:"totalFees"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	PeakBalance float64 `json:"peakBalance"`
}

// QuantState персистится по ключу cache:quant:<mode>:<symbol>, только paper.
type QuantState struct {
	Balance    float64         `json:"balance"`
	Positions  []QuantPosition `json:"positions"`
	Orders     []TradeOrder    `json:"orders"`
	Stats      QuantStats      `json:"stats"`
	LastUpdate int64           `json:"lastUpdate"`
}

// QuantStatus то, что видит UI.
type QuantStatus struct {
	Mode       QuantMode       `json:"mode"`
	Symbol     string          `json:"symbol"`
	Enabled    bool            `json:"enabled"`
	Balance    float64         `json:"balance"`
	LastPrice  float64         `json:"lastPrice"`
	Positions  []QuantPosition `json:"positions"`
	Stats      QuantStats      `json:"stats"`
	LastSignal *Signal         `json:"lastSignal,omitempty"`
	UpdatedAt  int64           `json:"updatedAt"`
}

// CommandAction команда оператора.
type CommandAction string

const (
	CommandReset CommandAction = "reset"
	CommandStop  CommandAction = "stop"
	CommandStart CommandAction = "start"
)

// Command запись в cache:quant:command:<symbol>, TTL 10s.
type Command struct {
	Action CommandAction `json:"action"`
	Ts     int64         `json:"ts"`
}
