package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	pkgkafka "SignalBot/pkg/kafka"
)

// OutcomeReporter applies a settlement event.
type OutcomeReporter interface {
	ReportOutcome(ctx context.Context, o models.Outcome) error
}

// KafkaOutcomesHandler consumes settlement events.
type KafkaOutcomesHandler struct {
	topic    string
	reporter OutcomeReporter
	metrics  domrepo.Metrics
}

func NewKafkaOutcomesHandler(topic string, reporter OutcomeReporter, metrics domrepo.Metrics) *KafkaOutcomesHandler {
	return &KafkaOutcomesHandler{topic: topic, reporter: reporter, metrics: metrics}
}

func (h *KafkaOutcomesHandler) Topic() string { return h.topic }

// incoming message schema: {signal_id, instrument, class, won, settled_at (unix ms, optional)}
func (h *KafkaOutcomesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		SignalID   string `json:"signal_id"`
		Instrument string `json:"instrument"`
		Class      string `json:"class"`
		Won        *bool  `json:"won"`
		SettledAt  int64  `json:"settled_at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return fmt.Errorf("decode outcome: %w", err)
	}
	if m.Instrument == "" || m.Won == nil {
		h.metrics.RecordError("outcome_invalid")
		return fmt.Errorf("decode outcome: instrument and won are required")
	}

	o := models.Outcome{
		SignalID:   m.SignalID,
		Instrument: m.Instrument,
		Class:      models.SignalClass(m.Class),
		Won:        *m.Won,
		SettledAt:  time.Now(),
	}
	if o.Class == "" {
		o.Class = models.ClassShort
	}
	if m.SettledAt > 0 {
		o.SettledAt = time.UnixMilli(m.SettledAt)
	}
	if err := h.reporter.ReportOutcome(ctx, o); err != nil {
		h.metrics.RecordError("outcome_apply")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaOutcomesHandler)(nil)
