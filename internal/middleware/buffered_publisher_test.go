package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalBot/internal/domain/models"
	"SignalBot/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	got      []string
	closed   bool
}

func (p *flakyPublisher) Publish(_ context.Context, d *models.Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, d.Signal.ID)
	return nil
}

func (p *flakyPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *flakyPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

func delivery(id string) *models.Delivery {
	return &models.Delivery{Candidate: models.Candidate{
		Instrument: models.Instrument{Name: "EUR/USD"},
		Signal:     &models.SignalRecord{ID: id},
	}}
}

func TestBufferedPublisher_RetriesInBackground(t *testing.T) {
	next := &flakyPublisher{failures: 2}
	p := NewBufferedPublisher(next, metrics.Nop{}, WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
	p.Start(context.Background())

	err := p.Publish(context.Background(), delivery("s1"))
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return len(next.published()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"s1"}, next.published())

	require.NoError(t, p.Publish(context.Background(), delivery("s2")))
	require.NoError(t, p.Close())
	assert.True(t, next.closed)
}

func TestBufferedPublisher_Validation(t *testing.T) {
	p := NewBufferedPublisher(&flakyPublisher{}, metrics.Nop{})
	assert.Error(t, p.Publish(context.Background(), &models.Delivery{}))
	assert.Error(t, p.Publish(context.Background(), delivery("")))
	assert.Equal(t, 0, p.Pending())
}

func TestBufferedPublisher_BufferBounded(t *testing.T) {
	p := NewBufferedPublisher(&flakyPublisher{failures: 10}, metrics.Nop{}, WithBufferSize(2))
	for _, id := range []string{"a", "b", "c"} {
		_ = p.Publish(context.Background(), delivery(id))
	}
	assert.Equal(t, 2, p.Pending())
	require.NoError(t, p.Close())
}
