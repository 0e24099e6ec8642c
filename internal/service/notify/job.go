package notify

import (
	"context"
	"fmt"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	"SignalBot/pkg/logger"
	"SignalBot/pkg/queue"
)

const JobTypeSignal = "signal.notify"

// Payload is the queued form of a notification.
type Payload struct {
	ChatID   string           `json:"chat_id"`
	Delivery *models.Delivery `json:"delivery"`
}

// Job delivers queued notifications through a Notifier.
type Job struct {
	sender domrepo.Notifier
	log    *logger.Logger
}

func NewJob(sender domrepo.Notifier, lgr *logger.Logger) *Job {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Job{sender: sender, log: lgr}
}

func (j *Job) Name() string { return "signal-notify" }
func (j *Job) Type() string { return JobTypeSignal }

func (j *Job) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[Payload](payload)
	if err != nil {
		return err
	}
	if p.ChatID == "" || p.Delivery == nil || p.Delivery.Signal == nil {
		j.log.Warn("dropping malformed notification", logger.String("chat_id", p.ChatID))
		return nil
	}
	return j.sender.Notify(ctx, p.ChatID, p.Delivery)
}

// Queued implements Notifier by enqueueing the delivery for a Job to send.
type Queued struct {
	q queue.QueueService
}

func NewQueued(q queue.QueueService) *Queued {
	return &Queued{q: q}
}

func (n *Queued) Notify(ctx context.Context, chatID string, d *models.Delivery) error {
	if err := n.q.PublishMessage(ctx, JobTypeSignal, Payload{ChatID: chatID, Delivery: d}); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
