package scorer

import (
	"time"

	domrepo "SignalBot/internal/domain/repository"
	domsvc "SignalBot/internal/domain/service"
	"SignalBot/pkg/logger"
)

// Option configures Scorer.
type Option func(*Scorer)

// Config holds scorer configuration.
type Config struct {
	MinConfidence float64
	MaxConfidence float64
	FetchAttempts int
	FetchBackoff  time.Duration
	FetchTimeout  time.Duration
}

// WithConfidenceBounds sets the confidence window.
func WithConfidenceBounds(min, max float64) Option {
	return func(s *Scorer) {
		if min > 0 && max >= min {
			s.cfg.MinConfidence = min
			s.cfg.MaxConfidence = max
		}
	}
}

// WithRetry sets fetch attempts and the linear backoff step.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Scorer) {
		s.cfg.FetchAttempts = attempts
		s.cfg.FetchBackoff = backoff
	}
}

// WithFetchTimeout bounds a single scoring call's data retrieval.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		s.cfg.FetchTimeout = d
	}
}

// WithRandom sets the randomness source used by fallback records.
func WithRandom(r domsvc.Random) Option {
	return func(s *Scorer) {
		if r != nil {
			s.rnd = r
		}
	}
}

// WithClock sets the time source for record timestamps.
func WithClock(c domsvc.Clock) Option {
	return func(s *Scorer) {
		if c != nil {
			s.now = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m domrepo.Metrics) Option {
	return func(s *Scorer) {
		if m != nil {
			s.metrics = m
		}
	}
}
