package models

import "time"

// Tick одна цена из публичного стрима.
type Tick struct {
	Symbol     string
	Price      float64
	ReceivedAt time.Time
}

// TsMs монотонная метка в миллисекундах.
func (t Tick) TsMs() int64 { return t.ReceivedAt.UnixMilli() }

// PricePoint точка траектории цены.
type PricePoint struct {
	Price float64 `json:"price"`
	Ts    int64   `json:"ts"` // ms
}

// Candle свеча из REST kline.
type Candle struct {
	ID     int64   `json:"id"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Amount float64 `json:"amount"`
	Vol    float64 `json:"vol"`
}
