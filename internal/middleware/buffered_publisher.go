package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	"SignalBot/pkg/logger"
)

// BufferedPublisher sits between the signal pipeline and a downstream
// publisher. Deliveries that fail to publish are parked in a bounded buffer
// and retried in the background with capped exponential backoff.
type BufferedPublisher struct {
	next    domrepo.SignalPublisher
	metrics domrepo.Metrics
	log     *logger.Logger

	bufCh      chan *models.Delivery
	stopCh     chan struct{}
	done       chan struct{}
	minBackoff time.Duration
	maxBackoff time.Duration

	mu      sync.Mutex
	started bool
}

type BufferOption func(*BufferedPublisher)

// WithBufferSize sets how many failed deliveries are kept for retry.
func WithBufferSize(n int) BufferOption {
	return func(p *BufferedPublisher) {
		if n > 0 {
			p.bufCh = make(chan *models.Delivery, n)
		}
	}
}

// WithRetryBackoff sets the retry backoff range.
func WithRetryBackoff(min, max time.Duration) BufferOption {
	return func(p *BufferedPublisher) {
		if min > 0 && max >= min {
			p.minBackoff, p.maxBackoff = min, max
		}
	}
}

func WithBufferLogger(l *logger.Logger) BufferOption {
	return func(p *BufferedPublisher) {
		if l != nil {
			p.log = l
		}
	}
}

func NewBufferedPublisher(next domrepo.SignalPublisher, metrics domrepo.Metrics, opts ...BufferOption) *BufferedPublisher {
	p := &BufferedPublisher{
		next:       next,
		metrics:    metrics,
		log:        logger.Nop(),
		bufCh:      make(chan *models.Delivery, 256),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ domrepo.SignalPublisher = (*BufferedPublisher)(nil)

// Start launches the background retry loop.
func (p *BufferedPublisher) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flush(ctx)
}

func (p *BufferedPublisher) flush(ctx context.Context) {
	defer close(p.done)
	backoff := p.minBackoff
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case d := <-p.bufCh:
			if err := p.next.Publish(ctx, d); err == nil {
				backoff = p.minBackoff
				continue
			}
			p.metrics.RecordError("publish_retry")
			select {
			case <-time.After(backoff):
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
			p.park(d)
		}
	}
}

// Publish forwards d and buffers it when the downstream fails. The error is
// still returned so callers can count it.
func (p *BufferedPublisher) Publish(ctx context.Context, d *models.Delivery) error {
	if err := validateDelivery(d); err != nil {
		p.metrics.RecordError("publish_invalid")
		return err
	}
	if err := p.next.Publish(ctx, d); err != nil {
		p.park(d)
		return fmt.Errorf("publish buffered: %w", err)
	}
	return nil
}

// Pending returns the number of buffered deliveries.
func (p *BufferedPublisher) Pending() int { return len(p.bufCh) }

func (p *BufferedPublisher) park(d *models.Delivery) {
	select {
	case p.bufCh <- d:
	default:
		p.metrics.RecordError("publish_buffer_full")
		p.log.Warn("publish buffer full, dropping signal", logger.String("id", d.Signal.ID))
	}
}

// Close stops the retry loop and closes the downstream publisher. Deliveries
// still buffered are dropped.
func (p *BufferedPublisher) Close() error {
	p.mu.Lock()
	started := p.started
	if started {
		p.started = false
		close(p.stopCh)
	}
	p.mu.Unlock()
	if started {
		<-p.done
	}
	if n := len(p.bufCh); n > 0 {
		p.log.Warn("dropping buffered signals on close", logger.Int("pending", n))
	}
	return p.next.Close()
}

func validateDelivery(d *models.Delivery) error {
	switch {
	case d == nil || d.Signal == nil:
		return fmt.Errorf("delivery without signal")
	case d.Signal.ID == "":
		return fmt.Errorf("signal id empty")
	case d.Instrument.Name == "":
		return fmt.Errorf("instrument empty")
	}
	return nil
}
