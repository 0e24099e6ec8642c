package repository

import (
	"context"
	"time"

	"SignalBot/internal/domain/models"
)

// MarketData returns chronological OHLC bars for a symbol.
type MarketData interface {
	FetchOHLC(ctx context.Context, symbol, interval, lookback string) ([]models.OHLCBar, error)
}

// SignalStore persists delivered signals and their settlement.
type SignalStore interface {
	Save(ctx context.Context, d *models.Delivery) error
	UpdateOutcome(ctx context.Context, o models.Outcome) error
	History(ctx context.Context, instrument string, limit int) ([]StoredSignal, error)
	WinRate(ctx context.Context, instrument string, since time.Time) (WinStats, error)
	Health(ctx context.Context) error
}

// StoredSignal is a persisted delivery plus its settlement state.
type StoredSignal struct {
	ID         string     `json:"id"`
	Instrument string     `json:"instrument"`
	Symbol     string     `json:"symbol"`
	Class      string     `json:"class"`
	Timeframe  string     `json:"timeframe"`
	Direction  string     `json:"direction"`
	Confidence float64    `json:"confidence"`
	Score      int        `json:"score"`
	Price      float64    `json:"price"`
	Fallback   bool       `json:"fallback"`
	CreatedAt  time.Time  `json:"created_at"`
	Result     string     `json:"result"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
}

// WinStats summarises settled signals.
type WinStats struct {
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Rate   float64 `json:"rate"`
}

// SignalPublisher emits delivered signals to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, d *models.Delivery) error
	Close() error
}

// Notifier sends a delivery to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID string, d *models.Delivery) error
}

// Enricher produces optional narrative for a delivery.
type Enricher interface {
	Enrich(ctx context.Context, d *models.Delivery) (*models.Commentary, error)
}

// Metrics is the observability surface used by the signal pipeline.
type Metrics interface {
	RecordScan(class string, seconds float64, candidates int)
	RecordCacheHit(class string)
	RecordFetchError(symbol string)
	RecordFallback(reason string)
	RecordSelection(class, instrument string)
	RecordOutcome(class string, won bool)
	RecordError(kind string)
}
