package models

import "time"

type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// Arrow returns the chat glyph shown next to the direction.
func (d Direction) Arrow() string {
	if d == DirectionCall {
		return "📈"
	}
	return "📉"
}

type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
)

// SignalClass is the horizon family a scan or selection runs for.
type SignalClass string

const (
	ClassShort SignalClass = "short"
	ClassLong  SignalClass = "long"
)

// Valid reports whether c is a known class.
func (c SignalClass) Valid() bool {
	return c == ClassShort || c == ClassLong
}

// SignalRecord is one scored (instrument, timeframe) result. Records are never
// mutated after the scorer returns them.
type SignalRecord struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	Direction     Direction `json:"direction"`
	Trend         Trend     `json:"trend"`
	Confidence    float64   `json:"confidence"`
	Score         int       `json:"score"`
	Price         float64   `json:"price"`
	RSI           float64   `json:"rsi"`
	MACD          float64   `json:"macd"`
	MACDSignal    float64   `json:"macd_signal"`
	StochK        float64   `json:"stoch_k"`
	EMA20         float64   `json:"ema_20"`
	EMA50         float64   `json:"ema_50"`
	Volatility    float64   `json:"volatility"`
	WhaleDetected bool      `json:"whale_detected"`
	Volume        float64   `json:"volume"`
	AvgVolume     float64   `json:"avg_volume"`
	VolumeRatio   float64   `json:"volume_ratio"`
	// Fallback marks records whose price/indicator fields are placeholders.
	Fallback  bool      `json:"fallback"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is a ranked scan entry: the catalog instrument, its record and the
// timeframe it was scored on.
type Candidate struct {
	Instrument Instrument    `json:"instrument"`
	Signal     *SignalRecord `json:"signal"`
	Timeframe  string        `json:"timeframe"`
}

// OpenPosition identifies a signal the consumer is still waiting on.
// An empty Timeframe matches any timeframe of the instrument.
type OpenPosition struct {
	Instrument string `json:"instrument"`
	Timeframe  string `json:"timeframe"`
}

// Outcome is a settlement event for a previously issued signal.
type Outcome struct {
	SignalID   string      `json:"signal_id"`
	Instrument string      `json:"instrument"`
	Class      SignalClass `json:"class"`
	Won        bool        `json:"won"`
	SettledAt  time.Time   `json:"settled_at"`
}

// Commentary is optional narrative attached to a selected signal.
type Commentary struct {
	Direction   Direction `json:"signal"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning"`
	KeyFactors  []string  `json:"key_factors"`
	RiskLevel   string    `json:"risk_level"`
	Expiration  string    `json:"expiration"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Delivery is what callers receive from a pick: the chosen candidate plus
// presentation helpers.
type Delivery struct {
	Candidate
	Class           SignalClass `json:"class"`
	BrokerName      string      `json:"broker_name"`
	ExpirationLabel string      `json:"expiration_label"`
	ExpirationMins  int         `json:"expiration_minutes"`
	Commentary      *Commentary `json:"commentary,omitempty"`
}
