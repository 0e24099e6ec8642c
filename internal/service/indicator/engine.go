package indicator

import (
	"errors"
	"fmt"
	"math"

	"SignalBot/internal/domain/models"
)

// MinBars is the shortest series the engine will evaluate.
const MinBars = 20

const (
	rsiPeriod     = 14
	stochPeriod   = 14
	stochDPeriod  = 3
	levelsPeriod  = 10
	macdFast      = 12
	macdSlow      = 26
	macdSignalLen = 9
)

var (
	ErrInsufficientData = errors.New("indicator: insufficient data")
	ErrInvalidBar       = errors.New("indicator: invalid bar")
)

// Snapshot holds the indicator values for one bar.
//
// RSIUsable is false when the 14-bar loss average is zero (RSI saturates or is
// undefined). StochUsable is false when the 14-bar high/low range is flat.
// Unusable values are still filled from neighbouring rows so every field is
// populated, but they carry no directional information.
type Snapshot struct {
	Close       float64
	EMA20       float64
	EMA50       float64
	EMA100      float64
	RSI         float64
	RSIUsable   bool
	MACD        float64
	MACDSignal  float64
	StochK      float64
	StochD      float64
	StochUsable bool
	Resistance  float64
	Support     float64
}

// Compute evaluates the indicator set over bars and returns one Snapshot per bar,
// aligned by index.
func Compute(bars []models.OHLCBar) ([]Snapshot, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("%w: %d bars, need %d", ErrInsufficientData, len(bars), MinBars)
	}

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		if !finite(b.Close) || !finite(b.High) || !finite(b.Low) {
			return nil, fmt.Errorf("%w: non-finite price at index %d", ErrInvalidBar, i)
		}
		closes[i], highs[i], lows[i] = b.Close, b.High, b.Low
	}

	ema20 := ewm(closes, 20)
	ema50 := ewm(closes, 50)
	ema100 := ewm(closes, 100)

	rsi, rsiOK := relativeStrength(closes)

	fast := ewm(closes, macdFast)
	slow := ewm(closes, macdSlow)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}
	signal := ewm(macd, macdSignalLen)

	k, kOK := stochastic(closes, highs, lows)
	d := rollingMean(k, stochDPeriod)

	resistance := rollingMax(highs, levelsPeriod)
	support := rollingMin(lows, levelsPeriod)

	for _, col := range [][]float64{rsi, k, d, resistance, support} {
		fill(col)
	}
	// a column with no defined value at all reads as neutral
	for _, col := range [][]float64{rsi, k, d} {
		neutral(col, 50)
	}

	out := make([]Snapshot, n)
	for i := range out {
		out[i] = Snapshot{
			Close:       closes[i],
			EMA20:       ema20[i],
			EMA50:       ema50[i],
			EMA100:      ema100[i],
			RSI:         rsi[i],
			RSIUsable:   rsiOK[i] && finite(rsi[i]),
			MACD:        macd[i],
			MACDSignal:  signal[i],
			StochK:      k[i],
			StochD:      d[i],
			StochUsable: kOK[i] && finite(k[i]),
			Resistance:  resistance[i],
			Support:     support[i],
		}
	}
	return out, nil
}

// Latest returns the most recent snapshot for bars.
func Latest(bars []models.OHLCBar) (Snapshot, error) {
	rows, err := Compute(bars)
	if err != nil {
		return Snapshot{}, err
	}
	return rows[len(rows)-1], nil
}

// relativeStrength uses a plain rolling mean of gains and losses. ok[i] is false
// during warm-up and wherever the loss average is zero.
func relativeStrength(closes []float64) ([]float64, []bool) {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	avgGain := rollingMean(gains, rsiPeriod)
	avgLoss := rollingMean(losses, rsiPeriod)

	rsi := make([]float64, n)
	ok := make([]bool, n)
	for i := range rsi {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			rsi[i] = nan
		case l == 0 && g == 0:
			rsi[i] = nan
		case l == 0:
			// limit of the formula as the loss average goes to zero
			rsi[i] = 100
		default:
			rsi[i] = 100 - 100/(1+g/l)
			ok[i] = true
		}
	}
	return rsi, ok
}

func stochastic(closes, highs, lows []float64) ([]float64, []bool) {
	hh := rollingMax(highs, stochPeriod)
	ll := rollingMin(lows, stochPeriod)
	k := make([]float64, len(closes))
	ok := make([]bool, len(closes))
	for i := range k {
		span := hh[i] - ll[i]
		if math.IsNaN(span) || span == 0 {
			k[i] = nan
			continue
		}
		k[i] = 100 * (closes[i] - ll[i]) / span
		ok[i] = true
	}
	return k, ok
}

func neutral(xs []float64, v float64) {
	for i := range xs {
		if math.IsNaN(xs[i]) {
			xs[i] = v
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
