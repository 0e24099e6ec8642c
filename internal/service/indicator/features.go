package indicator

import (
	"math"

	"SignalBot/internal/domain/models"
)

// PctChanges computes simple returns c_t/c_{t-1} - 1. Pairs with a
// non-positive previous close are skipped.
func PctChanges(bars []models.OHLCBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		out = append(out, bars[i].Close/prev-1)
	}
	return out
}

// Volatility is the sample standard deviation of close-to-close returns, in
// percent. Fewer than two returns yield 0.
func Volatility(bars []models.OHLCBar) float64 {
	rets := PctChanges(bars)
	if len(rets) < 2 {
		return 0
	}
	sum := 0.0
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	ss := 0.0
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss/float64(len(rets)-1)) * 100
}

// VolumeProfile returns the latest volume and the mean volume of the trailing
// window (latest bar included). avg is 0 when the window is not full.
func VolumeProfile(bars []models.OHLCBar, window int) (current, avg float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	current = bars[len(bars)-1].Volume
	if window <= 0 || len(bars) < window {
		return current, 0
	}
	sum := 0.0
	for _, b := range bars[len(bars)-window:] {
		sum += b.Volume
	}
	return current, sum / float64(window)
}
