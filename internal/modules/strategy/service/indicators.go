package service

import "math"

// SMA среднее последних period значений.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// RSI по Уайлдеру: сид простым средним первых period изменений, дальше сглаживание 1/period.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50, true
	case avgLoss == 0:
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
	// PrevHistogram гистограмма на предыдущей точке
	PrevHistogram float64
}

// MACD fast/slow/signal, обычно 12/26/9.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return MACDResult{}, false
	}
	f := emaSeries(closes, fast)
	s := emaSeries(closes, slow)

	// линия MACD считается с момента прогрева медленной EMA
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, f[i]-s[i])
	}
	sig := emaSeries(line, signal)

	n := len(line)
	return MACDResult{
		MACD:          line[n-1],
		Signal:        sig[n-1],
		Histogram:     line[n-1] - sig[n-1],
		PrevHistogram: line[n-2] - sig[n-2],
	}, true
}

type BollingerResult struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// Bollinger SMA(period) ± k·σ, σ генеральная.
func Bollinger(closes []float64, period int, k float64) (BollingerResult, bool) {
	mid, ok := SMA(closes, period)
	if !ok {
		return BollingerResult{}, false
	}
	var sq float64
	for _, c := range closes[len(closes)-period:] {
		sq += (c - mid) * (c - mid)
	}
	sd := math.Sqrt(sq / float64(period))
	return BollingerResult{Middle: mid, Upper: mid + k*sd, Lower: mid - k*sd}, true
}
