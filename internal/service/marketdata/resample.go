package marketdata

import (
	"fmt"
	"time"

	"SignalBot/internal/domain/models"
)

var baseDuration = map[string]time.Duration{
	"1m":  time.Minute,
	"2m":  2 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"1d":  24 * time.Hour,
	"1wk": 7 * 24 * time.Hour,
}

var derived = map[string]struct {
	base   string
	factor int
}{
	"3m": {"1m", 3},
	"4h": {"1h", 4},
}

func resolveInterval(interval string) (string, int, error) {
	if d, ok := derived[interval]; ok {
		return d.base, d.factor, nil
	}
	if _, ok := baseDuration[interval]; ok {
		return interval, 1, nil
	}
	return "", 0, fmt.Errorf("%w: %q", ErrUnsupportedRange, interval)
}

// Resample folds bars into buckets of factor×step aligned to UTC midnight.
// Open is the first bar's, close the last's, high/low the extremes and volume
// the sum.
func Resample(bars []models.OHLCBar, factor int, step time.Duration) []models.OHLCBar {
	if factor <= 1 || len(bars) == 0 {
		return bars
	}
	width := step * time.Duration(factor)
	out := make([]models.OHLCBar, 0, len(bars)/factor+1)
	var cur models.OHLCBar
	var bucket time.Time
	for i, b := range bars {
		start := b.Time.Truncate(width)
		if i == 0 || !start.Equal(bucket) {
			if i > 0 {
				out = append(out, cur)
			}
			bucket = start
			cur = models.OHLCBar{Time: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}
