package marketdata

import (
	"net/http"
	"time"

	"SignalBot/pkg/cache"
	"SignalBot/pkg/logger"
)

// Option configures Yahoo.
type Option func(*Config)

// Config holds provider configuration.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	UserAgent       string
	RateCapacity    float64
	RatePerSecond   float64
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration
	CacheTTL        time.Duration
	CacheKeyPrefix  string
	Cache           cache.Service
	Transport       http.RoundTripper
	Log             *logger.Logger
}

// WithBaseURL sets the chart endpoint.
func WithBaseURL(u string) Option {
	return func(c *Config) {
		if u != "" {
			c.BaseURL = u
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithRateLimit sets the token bucket.
func WithRateLimit(capacity, perSecond float64) Option {
	return func(c *Config) {
		if capacity > 0 && perSecond > 0 {
			c.RateCapacity, c.RatePerSecond = capacity, perSecond
		}
	}
}

// WithBreaker sets the consecutive-failure threshold and open duration.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *Config) {
		if failures > 0 {
			c.BreakerFailures = failures
		}
		if openFor > 0 {
			c.BreakerOpenFor = openFor
		}
	}
}

// WithCache enables the bar cache.
func WithCache(svc cache.Service, ttl time.Duration) Option {
	return func(c *Config) {
		c.Cache = svc
		if ttl > 0 {
			c.CacheTTL = ttl
		}
	}
}

// WithTransport overrides the HTTP round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Log = l
		}
	}
}
