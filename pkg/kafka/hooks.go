package kafka

import (
	"context"
	"time"

	"SignalBot/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook wraps message handling. Returning an error from BeforeHandle
// skips the handler and counts as a failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
	return ctx, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, error) {}

type ctxKey string

const (
	// CtxStartTime holds time.Time for when handling started.
	CtxStartTime ctxKey = "kafka_hook_start_time"
	// CtxTraceID holds the correlation id carried in message headers.
	CtxTraceID ctxKey = "kafka_hook_trace_id"
)

// WithTraceID sets trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, CtxTraceID, traceID)
}

// ExtractTraceID returns the trace_id header, if any.
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "trace_id" && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// TracingHook copies the trace header into the context and logs slow or
// failed handling.
type TracingHook struct {
	Log  *logger.Logger
	Slow time.Duration
}

func (h TracingHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, []byte, error) {
	ctx = context.WithValue(ctx, CtxStartTime, time.Now())
	return WithTraceID(ctx, ExtractTraceID(km)), data, nil
}

func (h TracingHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	if h.Log == nil {
		return
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(CtxStartTime).(time.Time); ok {
		elapsed = time.Since(start)
	}
	trace, _ := ctx.Value(CtxTraceID).(string)
	switch {
	case err != nil:
		h.Log.Warn("kafka handler failed",
			logger.String("topic", topic),
			logger.Int("partition", km.Partition),
			logger.Int64("offset", km.Offset),
			logger.String("trace_id", trace),
			logger.Error(err))
	case h.Slow > 0 && elapsed > h.Slow:
		h.Log.Warn("slow kafka handler",
			logger.String("topic", topic),
			logger.Duration("elapsed", elapsed),
			logger.String("trace_id", trace))
	}
}
