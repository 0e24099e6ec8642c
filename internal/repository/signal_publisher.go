package repository

import (
	"context"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	pkgkafka "SignalBot/pkg/kafka"
)

// SignalEvent is the Kafka payload for a delivered signal.
type SignalEvent struct {
	ID          string             `json:"id"`
	Class       models.SignalClass `json:"class"`
	Instrument  string             `json:"instrument"`
	BrokerName  string             `json:"broker_name"`
	Symbol      string             `json:"symbol"`
	Timeframe   string             `json:"timeframe"`
	Direction   models.Direction   `json:"direction"`
	Confidence  float64            `json:"confidence"`
	Payout      int                `json:"payout"`
	ExpiresMins int                `json:"expiration_minutes"`
	Fallback    bool               `json:"fallback"`
	CreatedAt   int64              `json:"created_at"`
}

// NewSignalEvent flattens a delivery into its event form.
func NewSignalEvent(d *models.Delivery) SignalEvent {
	return SignalEvent{
		ID:          d.Signal.ID,
		Class:       d.Class,
		Instrument:  d.Instrument.Name,
		BrokerName:  d.BrokerName,
		Symbol:      d.Instrument.Symbol,
		Timeframe:   d.Timeframe,
		Direction:   d.Signal.Direction,
		Confidence:  d.Signal.Confidence,
		Payout:      d.Instrument.Payout,
		ExpiresMins: d.ExpirationMins,
		Fallback:    d.Signal.Fallback,
		CreatedAt:   d.Signal.CreatedAt.UnixMilli(),
	}
}

// KafkaSignalPublisher publishes deliveries keyed by instrument so one
// instrument's signals stay ordered within a partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func (p *KafkaSignalPublisher) Publish(ctx context.Context, d *models.Delivery) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Instrument.Name), NewSignalEvent(d))
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
