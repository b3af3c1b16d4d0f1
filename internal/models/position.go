package models

import "time"

// Direction сторона позиции на бирже.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Opposite возвращает встречную сторону.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// PosKey ключ позиции: (контракт, сторона).
type PosKey struct {
	Contract  string
	Direction Direction
}

func (k PosKey) String() string { return k.Contract + ":" + string(k.Direction) }

// Position снапшот позиции из приватного стрима.
type Position struct {
	Contract       string    `json:"contract"`
	Direction      Direction `json:"direction"`
	Volume         float64   `json:"volume"`
	CostOpen       float64   `json:"costOpen"`
	PositionMargin float64   `json:"positionMargin"`
	Available      float64   `json:"available"`
	ProfitUnreal   float64   `json:"profitUnreal"`
	ProfitRate     float64   `json:"profitRate"`
	LeverRate      int       `json:"leverRate,omitempty"`
	LastPrice      float64   `json:"lastPrice,omitempty"`
}

func (p Position) Key() PosKey { return PosKey{Contract: p.Contract, Direction: p.Direction} }

// PositionsUpdate то, что приватная сессия отдаёт наружу на каждый push.
type PositionsUpdate struct {
	// Snapshot == true: список полный, карту нужно пересобрать.
	Snapshot   bool
	Event      string
	Positions  []Position
	ReceivedAt time.Time
}

// PositionSummary агрегат по символу для UI-снапшота.
type PositionSummary struct {
	Symbol    string    `json:"symbol"`
	Long      *Position `json:"long,omitempty"`
	Short     *Position `json:"short,omitempty"`
	UpdatedAt int64     `json:"updatedAt"`
}
