package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func TestLogCollector_Deduplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "signalbot.logs", Publisher: pub})
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.AddLog("error", "fetch failed", map[string]interface{}{"symbol": "EURUSD=X"}, "scorer.go:80")
	}
	c.AddLog("error", "fetch failed", map[string]interface{}{"symbol": "GBPUSD=X"}, "scorer.go:80")
	assert.Equal(t, 2, c.Pending())

	c.Flush()
	require.Equal(t, 1, pub.count())
	assert.Equal(t, "signalbot.logs", pub.topic)
	batch := pub.batches[0]
	require.Len(t, batch, 2)
	total := batch[0].Count + batch[1].Count
	assert.Equal(t, 4, total)
	assert.Equal(t, 0, c.Pending())
}

func TestLogCollector_ThresholdFlush(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})

	c.AddLog("error", "a", nil, "x")
	c.AddLog("error", "b", nil, "x")
	c.Close()

	assert.Equal(t, 1, pub.count())
}

func TestLogger_ErrorsReachCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})

	child := l.With(String("component", "scanner"))
	for _, lg := range []*Logger{l, child} {
		lg.Error("publish failed", Error(errors.New("broker down")), String("topic", "signals"))
	}
	l.Warn("slow scan")
	// same message, fields and call site collapse into one entry
	assert.Equal(t, 1, l.collector.Pending())

	l.RemoveCollector()
	require.Equal(t, 1, pub.count())
	assert.Equal(t, 2, pub.batches[0][0].Count)
}
