package models

import "time"

type InstrumentClass string

const (
	InstrumentOTC     InstrumentClass = "otc"
	InstrumentRegular InstrumentClass = "regular"
)

// Instrument is an immutable catalog entry.
type Instrument struct {
	Name   string          `json:"name" yaml:"name"`
	Symbol string          `json:"symbol" yaml:"symbol"`
	Class  InstrumentClass `json:"class" yaml:"class"`
	Payout int             `json:"payout" yaml:"payout"`
	Group  string          `json:"group" yaml:"-"`
}

// IsOTC reports whether the instrument is an OTC listing.
func (i Instrument) IsOTC() bool { return i.Class == InstrumentOTC }

// OHLCBar is one historical sample. Volume is zero when the source has none.
type OHLCBar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}
