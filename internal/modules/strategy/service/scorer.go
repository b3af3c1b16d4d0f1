package service

import (
	"fmt"
	"math"

	"market_monitor/internal/models"
)

type ScorerParams struct {
	EMAFast       int
	EMASlow       int
	SMAPeriod     int
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BollPeriod    int
	BollK         float64
	// MinVotes при меньшем числе голосов за сторону hold
	MinVotes int
}

func DefaultScorerParams() ScorerParams {
	return ScorerParams{
		EMAFast:       9,
		EMASlow:       21,
		SMAPeriod:     50,
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		BollPeriod:    20,
		BollK:         2,
		MinVotes:      2,
	}
}

// Snapshot значения индикаторов на последней свече.
type Snapshot struct {
	Close   float64
	EMAFast float64
	EMASlow float64
	SMA     float64
	RSI     float64
	MACD    MACDResult
	Boll    BollingerResult
}

// Scorer голосование индикаторов: тренд EMA, цена к SMA, RSI, MACD, Боллинджер.
type Scorer struct {
	p ScorerParams
}

func NewScorer(p ScorerParams) *Scorer { return &Scorer{p: p} }

func (s *Scorer) Name() string { return "indicator_vote" }

func (s *Scorer) MinCandles() int {
	n := s.p.SMAPeriod
	for _, v := range []int{s.p.EMASlow, s.p.RSIPeriod + 1, s.p.MACDSlow + s.p.MACDSignal, s.p.BollPeriod} {
		if v > n {
			n = v
		}
	}
	return n
}

func (s *Scorer) Evaluate(closes []float64) models.Signal {
	snap, ok := s.Snapshot(closes)
	if !ok {
		return models.Signal{
			Action:  models.ActionHold,
			Reasons: []string{fmt.Sprintf("нужно %d свечей, есть %d", s.MinCandles(), len(closes))},
		}
	}
	sig := s.Score(snap)
	sig.Price = snap.Close
	return sig
}

func (s *Scorer) Snapshot(closes []float64) (Snapshot, bool) {
	if len(closes) < s.MinCandles() {
		return Snapshot{}, false
	}
	var snap Snapshot
	var ok [6]bool
	snap.Close = closes[len(closes)-1]
	snap.EMAFast, ok[0] = EMA(closes, s.p.EMAFast)
	snap.EMASlow, ok[1] = EMA(closes, s.p.EMASlow)
	snap.SMA, ok[2] = SMA(closes, s.p.SMAPeriod)
	snap.RSI, ok[3] = RSI(closes, s.p.RSIPeriod)
	snap.MACD, ok[4] = MACD(closes, s.p.MACDFast, s.p.MACDSlow, s.p.MACDSignal)
	snap.Boll, ok[5] = Bollinger(closes, s.p.BollPeriod, s.p.BollK)
	for _, v := range ok {
		if !v {
			return Snapshot{}, false
		}
	}
	return snap, true
}

// Score confidence = (за − против) / число индикаторов · 100.
func (s *Scorer) Score(snap Snapshot) models.Signal {
	var long, short []string

	switch {
	case snap.EMAFast > snap.EMASlow:
		long = append(long, fmt.Sprintf("EMA%d > EMA%d", s.p.EMAFast, s.p.EMASlow))
	case snap.EMAFast < snap.EMASlow:
		short = append(short, fmt.Sprintf("EMA%d < EMA%d", s.p.EMAFast, s.p.EMASlow))
	}

	switch {
	case snap.Close > snap.SMA:
		long = append(long, fmt.Sprintf("цена выше SMA%d", s.p.SMAPeriod))
	case snap.Close < snap.SMA:
		short = append(short, fmt.Sprintf("цена ниже SMA%d", s.p.SMAPeriod))
	}

	switch {
	case snap.RSI <= s.p.RSIOversold:
		long = append(long, fmt.Sprintf("RSI %.1f перепродан", snap.RSI))
	case snap.RSI >= s.p.RSIOverbought:
		short = append(short, fmt.Sprintf("RSI %.1f перекуплен", snap.RSI))
	}

	h, prev := snap.MACD.Histogram, snap.MACD.PrevHistogram
	switch {
	case h > 0 && h >= prev:
		long = append(long, "MACD гистограмма растёт выше нуля")
	case h < 0 && h <= prev:
		short = append(short, "MACD гистограмма падает ниже нуля")
	}

	switch {
	case snap.Close <= snap.Boll.Lower:
		long = append(long, "цена у нижней полосы Боллинджера")
	case snap.Close >= snap.Boll.Upper:
		short = append(short, "цена у верхней полосы Боллинджера")
	}

	const voters = 5
	action, win, lose := models.ActionHold, long, short
	switch {
	case len(long) > len(short):
		action = models.ActionLong
	case len(short) > len(long):
		action, win, lose = models.ActionShort, short, long
	}
	if action == models.ActionHold || len(win) < s.p.MinVotes {
		return models.Signal{Action: models.ActionHold, Reasons: append(long, short...)}
	}

	conf := float64(len(win)-len(lose)) / voters * 100
	conf = math.Max(0, math.Min(100, conf))
	return models.Signal{Action: action, Confidence: conf, Reasons: win}
}
