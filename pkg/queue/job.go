package queue

import "context"

// Job handles one message type pulled off the queue, such as a Telegram
// notification. A returned error schedules a retry until RetryLimit.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type routed to this job.
	Type() string

	Handle(ctx context.Context, payload interface{}) error
}
