package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"SignalBot/internal/domain/models"
	"SignalBot/internal/service/ratelimit"
	"SignalBot/pkg/cache"
	xhttp "SignalBot/pkg/http"
	"SignalBot/pkg/logger"

	"github.com/sony/gobreaker"
)

var (
	ErrNoData           = errors.New("marketdata: no data")
	ErrUnsupportedRange = errors.New("marketdata: unsupported interval")
)

const limiterKey = "yahoo"

// Yahoo fetches OHLC history from the Yahoo Finance chart endpoint.
type Yahoo struct {
	cfg     *Config
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   cache.Service
	log     *logger.Logger
}

// NewYahoo creates the provider. A nil cache disables bar caching.
func NewYahoo(opts ...Option) *Yahoo {
	cfg := &Config{
		BaseURL:         "https://query1.finance.yahoo.com/v8/finance/chart",
		Timeout:         10 * time.Second,
		UserAgent:       "Mozilla/5.0 (compatible; SignalBot/1.0)",
		RateCapacity:    10,
		RatePerSecond:   5,
		BreakerFailures: 5,
		BreakerOpenFor:  30 * time.Second,
		BreakerInterval: time.Minute,
		CacheTTL:        30 * time.Second,
		CacheKeyPrefix:  "bars",
		Log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	clientOpts := []xhttp.ClientOption{
		xhttp.WithTimeout(cfg.Timeout),
		xhttp.WithHeader("User-Agent", cfg.UserAgent),
		xhttp.WithHeader("Accept", "application/json"),
	}
	if cfg.Transport != nil {
		clientOpts = append(clientOpts, xhttp.WithTransport(cfg.Transport))
	}

	y := &Yahoo{
		cfg:     cfg,
		client:  xhttp.NewClient(clientOpts...),
		limiter: ratelimit.New(),
		cache:   cfg.Cache,
		log:     cfg.Log,
	}
	y.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "yahoo-chart",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: isProviderHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			y.log.Warn("market data breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	return y
}

// FetchOHLC returns chronological bars for symbol. Intervals the chart API
// does not serve (3m, 4h) are fetched at a finer base and resampled.
func (y *Yahoo) FetchOHLC(ctx context.Context, symbol, interval, lookback string) ([]models.OHLCBar, error) {
	key := cache.Key(y.cfg.CacheKeyPrefix, symbol, interval, lookback)
	if y.cache != nil {
		var bars []models.OHLCBar
		if err := y.cache.Get(ctx, key, &bars); err == nil && len(bars) > 0 {
			return bars, nil
		}
	}

	base, factor, err := resolveInterval(interval)
	if err != nil {
		return nil, err
	}

	if err := y.limiter.Wait(ctx, limiterKey, y.cfg.RateCapacity, y.cfg.RatePerSecond); err != nil {
		return nil, err
	}

	out, err := y.breaker.Execute(func() (interface{}, error) {
		return y.fetchChart(ctx, symbol, base, lookback)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, interval, err)
	}
	bars := out.([]models.OHLCBar)
	if factor > 1 {
		bars = Resample(bars, factor, baseDuration[base])
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, symbol, interval)
	}

	if y.cache != nil {
		if err := y.cache.Set(ctx, key, bars, y.cfg.CacheTTL); err != nil {
			y.log.Debug("bar cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return bars, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) fetchChart(ctx context.Context, symbol, interval, lookback string) ([]models.OHLCBar, error) {
	var resp chartResponse
	err := y.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    y.cfg.BaseURL + "/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"interval": {interval},
			"range":    {lookback},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrNoData, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: empty chart", ErrNoData)
	}

	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]
	bars := make([]models.OHLCBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, h, l, c := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		// rows with any missing price are skipped
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		bar := models.OHLCBar{
			Time:  time.Unix(ts, 0).UTC(),
			Open:  *o,
			High:  *h,
			Low:   *l,
			Close: *c,
		}
		if v := at(q.Volume, i); v != nil {
			bar.Volume = *v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

// isProviderHealthy keeps client-side and empty-data errors from tripping
// the breaker.
func isProviderHealthy(err error) bool {
	if err == nil || errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}
