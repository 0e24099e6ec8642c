package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestProducer_PublishEncodesAndTags(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "signalbot-test", nil)

	ctx := WithTraceID(context.Background(), "trace-1")
	require.NoError(t, p.Publish(ctx, "signals", []byte("EURUSD"), map[string]int{"n": 1}))
	require.NoError(t, p.PublishBatch(ctx, "signals", []Message{{Value: "raw"}, {Value: []byte("bytes")}}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "signals", w.msgs[0].Topic)
	assert.Equal(t, []byte("EURUSD"), w.msgs[0].Key)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, "bytes", string(w.msgs[2].Value))
	assert.Equal(t, "trace-1", ExtractTraceID(w.msgs[0]))
	assert.Contains(t, w.msgs[0].Headers, kafka.Header{Key: "source", Value: []byte("signalbot-test")})
}

func TestProducer_Errors(t *testing.T) {
	w := &memWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, "", nil)
	err := p.Publish(context.Background(), "signals", nil, "x")
	assert.ErrorContains(t, err, "broker down")

	err = p.Publish(context.Background(), "signals", nil, func() {})
	assert.ErrorContains(t, err, "marshal value")

	assert.NoError(t, p.PublishBatch(context.Background(), "signals", nil))
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

type flakyHandler struct {
	topic    string
	failures int
	calls    int
	panics   bool
	got      []byte
}

func (h *flakyHandler) Topic() string { return h.topic }

func (h *flakyHandler) Handle(_ context.Context, data []byte) error {
	h.calls++
	if h.panics {
		panic("bad payload")
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	h.got = data
	return nil
}

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retries, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	return c
}

func TestConsumer_ProcessRetries(t *testing.T) {
	c := newTestConsumer(t, 3)
	h := &flakyHandler{topic: "outcomes", failures: 2}
	c.RegisterHandler(h)

	payload, _ := json.Marshal(map[string]string{"id": "1"})
	err := c.process(kafka.Message{Topic: "outcomes", Value: payload})
	require.NoError(t, err)
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, payload, h.got)
}

func TestConsumer_ProcessExhaustsAndDeadLetters(t *testing.T) {
	c := newTestConsumer(t, 1)
	dlq := &memWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "outcomes.dlq"
	h := &flakyHandler{topic: "outcomes", failures: 10}
	c.RegisterHandler(h)

	err := c.process(kafka.Message{Topic: "outcomes", Value: []byte("x")})
	assert.Error(t, err)
	assert.Equal(t, 2, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "outcomes.dlq", dlq.msgs[0].Topic)
}

func TestConsumer_ProcessRecoversPanic(t *testing.T) {
	c := newTestConsumer(t, 0)
	c.RegisterHandler(&flakyHandler{topic: "outcomes", panics: true})
	err := c.process(kafka.Message{Topic: "outcomes"})
	assert.ErrorContains(t, err, "handler panic")
}

func TestConsumer_HookCarriesTrace(t *testing.T) {
	c := newTestConsumer(t, 0)
	var seen string
	c.RegisterHandler(handlerFunc{topic: "outcomes", fn: func(ctx context.Context, _ []byte) error {
		seen, _ = ctx.Value(CtxTraceID).(string)
		return nil
	}})
	c.WithConsumerHook(TracingHook{})

	msg := kafka.Message{Topic: "outcomes", Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	require.NoError(t, c.process(msg))
	assert.Equal(t, "abc", seen)
}

type handlerFunc struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h handlerFunc) Topic() string                                 { return h.topic }
func (h handlerFunc) Handle(ctx context.Context, data []byte) error { return h.fn(ctx, data) }

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 80*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}
