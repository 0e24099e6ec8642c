package repository

import "strings"

// Timeframe is a chart resolution code as shown to users ("1M", "4H", ...).
type Timeframe string

const (
	TF1M  Timeframe = "1M"
	TF2M  Timeframe = "2M"
	TF3M  Timeframe = "3M"
	TF5M  Timeframe = "5M"
	TF15M Timeframe = "15M"
	TF30M Timeframe = "30M"
	TF1H  Timeframe = "1H"
	TF4H  Timeframe = "4H"
	TF1D  Timeframe = "1D"
	TF1W  Timeframe = "1W"
)

type timeframeSpec struct {
	interval string
	lookback string
	minutes  int
	label    string
}

var timeframes = map[Timeframe]timeframeSpec{
	TF1M:  {interval: "1m", lookback: "5d", minutes: 1, label: "1 минута"},
	TF2M:  {interval: "2m", lookback: "5d", minutes: 2},
	TF3M:  {interval: "3m", lookback: "5d", minutes: 3, label: "3 минуты"},
	TF5M:  {interval: "5m", lookback: "5d", minutes: 5, label: "5 минут"},
	TF15M: {interval: "15m", lookback: "1mo", minutes: 15, label: "15 минут"},
	TF30M: {interval: "30m", lookback: "1mo", minutes: 30, label: "30 минут"},
	TF1H:  {interval: "1h", lookback: "3mo", minutes: 60, label: "1 час"},
	TF4H:  {interval: "4h", lookback: "6mo", minutes: 240, label: "4 часа"},
	TF1D:  {interval: "1d", lookback: "1y", minutes: 1440, label: "1 день"},
	TF1W:  {interval: "1wk", lookback: "2y", minutes: 10080},
}

const (
	defaultExpirationLabel   = "5 минут"
	defaultExpirationMinutes = 5
	defaultLookback          = "5d"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframes[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF5M }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Interval returns the market data interval code for tf.
func (tf Timeframe) Interval() string {
	if s, ok := timeframes[tf]; ok {
		return s.interval
	}
	return strings.ToLower(string(tf))
}

// Lookback returns how much history to request for tf.
func (tf Timeframe) Lookback() string {
	if s, ok := timeframes[tf]; ok {
		return s.lookback
	}
	return defaultLookback
}

// ExpirationMinutes returns the trade expiration in minutes recommended for tf.
func (tf Timeframe) ExpirationMinutes() int {
	if s, ok := timeframes[tf]; ok {
		return s.minutes
	}
	return defaultExpirationMinutes
}

// ExpirationLabel returns the human readable expiration for a timeframe code.
// Unknown codes map to the five minute label.
func ExpirationLabel(code string) string {
	if s, ok := timeframes[Timeframe(strings.ToUpper(strings.TrimSpace(code)))]; ok && s.label != "" {
		return s.label
	}
	return defaultExpirationLabel
}
