package models

// ConfigDoc единый документ конфигурации, живёт в KV по ключу <ns>:config.
type ConfigDoc struct {
	Version      int64              `json:"version"`
	UpdatedAt    int64              `json:"updatedAt"`
	WatchSymbols []string           `json:"watchSymbols"`
	PriceChange  PriceChangeConfig  `json:"priceChange"`
	Targets      []TargetRule       `json:"targets"`
	PnL          PnLConfig          `json:"pnl"`
	Notification NotificationConfig `json:"notification"`
	// переопределение размера контракта по базовому активу: {"BTC": 0.001}
	ContractSizes map[string]float64 `json:"contractSizes,omitempty"`
	Quant         QuantConfig        `json:"quant"`
}

type PriceChangeConfig struct {
	Enabled             bool          `json:"enabled"`
	Windows             []PriceWindow `json:"windows"`
	MinNotifyIntervalMs int64         `json:"minNotifyIntervalMs"`
}

// PnLConfig пороги для ROE (в процентах) и PnL (в USDT).
type PnLConfig struct {
	Enabled          bool     `json:"enabled"`
	HiPct            float64  `json:"hiPct"`
	LoPct            float64  `json:"loPct"`
	HiAmt            *float64 `json:"hiAmt,omitempty"`
	LoAmt            *float64 `json:"loAmt,omitempty"`
	RepeatIntervalMs int64    `json:"repeatIntervalMs"`
	EnableHi         bool     `json:"enableHi"`
	EnableLo         bool     `json:"enableLo"`
}

type NotificationConfig struct {
	// nil: звук по умолчанию, "": тихо
	Sound         *string     `json:"sound,omitempty"`
	Level         NotifyLevel `json:"level"`
	Group         string      `json:"group"`
	DedupWindowMs int64       `json:"dedupWindowMs"`
}

// QuantConfig настройки квант-трейдера.
// Доли: PositionSize 0.1 = 10% баланса, StopLoss 0.2 = -20% ROE.
type QuantConfig struct {
	Enabled               bool    `json:"enabled"`
	TestMode              bool    `json:"testMode"`
	Symbol                string  `json:"symbol"`
	Leverage              float64 `json:"leverage"`
	InitialBalance        float64 `json:"initialBalance"`
	PositionSize          float64 `json:"positionSize"`
	StopLoss              float64 `json:"stopLoss"`
	TakeProfit            float64 `json:"takeProfit"`
	TrailingStop          float64 `json:"trailingStop"`
	MaxPositions          int     `json:"maxPositions"`
	MinConfidence         float64 `json:"minConfidence"`
	SignalCheckIntervalMs int64   `json:"signalCheckIntervalMs"`
	TakerFee              float64 `json:"takerFee"`
	KlinePeriod           string  `json:"klinePeriod"`
	KlineSize             int     `json:"klineSize"`
}

// Mode paper для TestMode, иначе live.
func (q QuantConfig) Mode() QuantMode {
	if q.TestMode {
		return ModePaper
	}
	return ModeLive
}
