package models

// ThresholdState состояние политики уведомлений по одному субъекту.
// AboveHi и BelowLo взаимоисключающие.
type ThresholdState struct {
	AboveHi          bool     `json:"aboveHi"`
	BelowLo          bool     `json:"belowLo"`
	LastNotifyTs     int64    `json:"lastNotifyTs"`
	LastNotifyRate   *float64 `json:"lastNotifyRate,omitempty"`
	LastNotifyAmount *float64 `json:"lastNotifyAmount,omitempty"`
}

// Band в какую сторону сработала политика.
type Band string

const (
	BandNone Band = ""
	BandHi   Band = "hi"
	BandLo   Band = "lo"
)

// FireReason почему политика решила уведомить.
type FireReason string

const (
	FireEnter        FireReason = "enter"
	FireContinuation FireReason = "continuation"
)

// PriceWindow окно детектора изменения цены.
type PriceWindow struct {
	DurationMs   int64   `json:"durationMs"`
	PctThreshold float64 `json:"pctThreshold"`
	AbsThreshold float64 `json:"absThreshold"`
	Label        string  `json:"label"`
}

// PriceChangeEvent результат детектора по самому значимому окну.
type PriceChangeEvent struct {
	Symbol    string
	Window    PriceWindow
	BasePrice float64
	BaseTs    int64
	Price     float64
	Ts        int64
	Pct       float64
	Abs       float64
	Tripped   bool
}

// TargetDirection направление ценовой цели.
type TargetDirection string

const (
	TargetAbove TargetDirection = "above"
	TargetBelow TargetDirection = "below"
)

// TargetRule правило ценовой цели. LastNotifyTs хранится отдельно, в рантайме.
type TargetRule struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	TargetPrice       float64         `json:"targetPrice"`
	Direction         TargetDirection `json:"direction"`
	NotifyOnce        bool            `json:"notifyOnce"`
	NotifyIntervalSec int64           `json:"notifyIntervalSec"`
	RangePercent      float64         `json:"rangePercent"`
	Enabled           *bool           `json:"enabled,omitempty"`
}

// IsEnabled правило без флага считается включённым.
func (r TargetRule) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// TargetHit срабатывание правила.
type TargetHit struct {
	Rule  TargetRule
	Price float64
	Ts    int64
	Once  bool
}

// PnLEvent срабатывание политики по позиции.
type PnLEvent struct {
	Position Position
	Last     float64
	PnL      float64
	ROE      float64
	PriceDlt float64
	Band     Band
	Reason   FireReason
}
