package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

var nan = math.NaN()

// ewm is an exponentially weighted mean with span n, alpha = 2/(n+1), no bias
// adjustment, seeded by the first value. talib.Ema seeds from the SMA of the
// first n values instead, which shifts every EMA the scorer compares.
func ewm(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rollingMean returns the mean of the trailing window, NaN until the window is
// full or when any value inside it is NaN. A window holding only zeros is
// exactly zero, so the RSI flat checks are not fooled by running-sum residue.
func rollingMean(xs []float64, window int) []float64 {
	return rolling(xs, window, talib.Sma)
}

func rollingMax(xs []float64, window int) []float64 {
	return rolling(xs, window, talib.Max)
}

func rollingMin(xs []float64, window int) []float64 {
	return rolling(xs, window, talib.Min)
}

// rolling runs a talib window function over xs with NaNs zeroed, then masks
// every index whose window is short or touches a NaN. talib leaves warm-up
// slots at 0 and carries a NaN forward through its running state.
func rolling(xs []float64, window int, f func([]float64, int) []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = nan
	}
	if window < 1 || len(xs) < window {
		return out
	}

	clean := make([]float64, len(xs))
	for i, x := range xs {
		if !math.IsNaN(x) {
			clean[i] = x
		}
	}
	res := f(clean, window)

	lastNaN, lastNonZero := -1, -1
	for i, x := range xs {
		if math.IsNaN(x) {
			lastNaN = i
		} else if x != 0 {
			lastNonZero = i
		}
		first := i - window + 1
		switch {
		case first < 0 || lastNaN >= first:
		case lastNonZero < first:
			out[i] = 0
		default:
			out[i] = res[i]
		}
	}
	return out
}

// fill replaces NaNs with the next valid value, then remaining trailing NaNs
// with the previous valid value. A column with no valid value stays NaN.
func fill(xs []float64) {
	next := nan
	for i := len(xs) - 1; i >= 0; i-- {
		if math.IsNaN(xs[i]) {
			xs[i] = next
		} else {
			next = xs[i]
		}
	}
	prev := nan
	for i := range xs {
		if math.IsNaN(xs[i]) {
			xs[i] = prev
		} else {
			prev = xs[i]
		}
	}
}
