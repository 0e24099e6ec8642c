package scorer

import (
	"context"
	"fmt"
	"math"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	domsvc "SignalBot/internal/domain/service"
	"SignalBot/internal/service/indicator"
	"SignalBot/pkg/logger"
	"SignalBot/pkg/metrics"

	"github.com/google/uuid"
)

const (
	confidenceStep   = 6.0
	whaleRatio       = 1.5
	volumeWindow     = 20
	tightVolatility  = 2.0
	looseVolatility  = 3.0
	tightStability   = 3
	looseStability   = 1
	rsiOverbought    = 70
	rsiOversold      = 30
	stochOverbought  = 80
	stochOversold    = 20
	fallbackScore    = 2
	fallbackConfLow  = 70.0
	fallbackConfHigh = 85.0
)

// Scorer turns an instrument's recent history into a directional SignalRecord.
// Score never fails: unusable data produces a fallback record.
type Scorer struct {
	md      domrepo.MarketData
	cfg     *Config
	rnd     domsvc.Random
	now     domsvc.Clock
	log     *logger.Logger
	metrics domrepo.Metrics
}

// New creates a Scorer reading history from md.
func New(md domrepo.MarketData, opts ...Option) *Scorer {
	cfg := &Config{
		MinConfidence: 70,
		MaxConfidence: 92,
		FetchAttempts: 2,
		FetchBackoff:  100 * time.Millisecond,
		FetchTimeout:  8 * time.Second,
	}
	s := &Scorer{
		md:      md,
		cfg:     cfg,
		rnd:     domsvc.NewLockedRandom(time.Now().UnixNano()),
		now:     domsvc.SystemClock,
		log:     logger.Nop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bounds returns the confidence window applied to computed records.
func (s *Scorer) Bounds() (float64, float64) {
	return s.cfg.MinConfidence, s.cfg.MaxConfidence
}

// Score fetches history for symbol on tf and scores it.
func (s *Scorer) Score(ctx context.Context, symbol string, tf domrepo.Timeframe) *models.SignalRecord {
	bars, err := s.fetch(ctx, symbol, tf)
	if err != nil {
		s.metrics.RecordFetchError(symbol)
		s.metrics.RecordFallback("data_unavailable")
		s.log.Debug("market data unavailable, using fallback",
			logger.String("symbol", symbol),
			logger.String("timeframe", string(tf)),
			logger.Error(err))
		return s.Fallback(symbol, tf)
	}

	rec, err := s.Evaluate(symbol, tf, bars)
	if err != nil {
		s.metrics.RecordFallback("computation")
		s.log.Debug("indicator evaluation failed, using fallback",
			logger.String("symbol", symbol),
			logger.String("timeframe", string(tf)),
			logger.Error(err))
		return s.Fallback(symbol, tf)
	}
	return rec
}

// Evaluate scores already retrieved bars.
func (s *Scorer) Evaluate(symbol string, tf domrepo.Timeframe, bars []models.OHLCBar) (*models.SignalRecord, error) {
	snap, err := indicator.Latest(bars)
	if err != nil {
		return nil, err
	}
	cur, avg := indicator.VolumeProfile(bars, volumeWindow)
	d := s.Decide(Inputs{
		Snapshot:   snap,
		Volatility: indicator.Volatility(bars),
		Volume:     cur,
		AvgVolume:  avg,
	})
	return &models.SignalRecord{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Timeframe:     string(tf),
		Direction:     d.Direction,
		Trend:         d.Trend,
		Confidence:    d.Confidence,
		Score:         d.Score,
		Price:         snap.Close,
		RSI:           snap.RSI,
		MACD:          snap.MACD,
		MACDSignal:    snap.MACDSignal,
		StochK:        snap.StochK,
		EMA20:         snap.EMA20,
		EMA50:         snap.EMA50,
		Volatility:    d.Volatility,
		WhaleDetected: d.Whale,
		Volume:        cur,
		AvgVolume:     avg,
		VolumeRatio:   d.VolumeRatio,
		CreatedAt:     s.now(),
	}, nil
}

// Inputs is everything Decide looks at.
type Inputs struct {
	Snapshot   indicator.Snapshot
	Volatility float64
	Volume     float64
	AvgVolume  float64
}

// Decision is the outcome of the rule set for one snapshot.
type Decision struct {
	Trend       models.Trend
	Direction   models.Direction
	CallScore   int
	PutScore    int
	Score       int
	Confidence  float64
	Volatility  float64
	Whale       bool
	VolumeRatio float64
}

// Decide applies the condition sets, stability bonus and whale factor.
// Equal totals resolve to CALL. Confidence is a linear heuristic
// (min + 6 per point, clipped), not a probability.
func (s *Scorer) Decide(in Inputs) Decision {
	c := in.Snapshot
	d := Decision{Trend: models.TrendBearish, Volatility: in.Volatility}
	if c.EMA20 > c.EMA50 {
		d.Trend = models.TrendBullish
	}
	bullish := d.Trend == models.TrendBullish

	d.CallScore = count(
		bullish,
		c.Close > c.EMA20,
		c.RSIUsable && c.RSI < rsiOverbought,
		c.StochUsable && c.StochK < stochOverbought,
		c.MACD > c.MACDSignal,
	)
	d.PutScore = count(
		!bullish,
		c.Close < c.EMA20,
		c.RSIUsable && c.RSI > rsiOversold,
		c.StochUsable && c.StochK > stochOversold,
		c.MACD < c.MACDSignal,
	)

	if in.AvgVolume > 0 {
		d.VolumeRatio = in.Volume / in.AvgVolume
		if d.VolumeRatio >= whaleRatio {
			d.Whale = true
			if bullish {
				d.CallScore++
			} else {
				d.PutScore++
			}
		}
	}

	bonus := stabilityBonus(in.Volatility)
	d.CallScore += bonus
	d.PutScore += bonus

	if d.CallScore >= d.PutScore {
		d.Direction, d.Score = models.DirectionCall, d.CallScore
	} else {
		d.Direction, d.Score = models.DirectionPut, d.PutScore
	}
	d.Confidence = round1(clip(s.cfg.MinConfidence+float64(d.Score)*confidenceStep, s.cfg.MinConfidence, s.cfg.MaxConfidence))
	return d
}

// Fallback builds a placeholder record with random direction and confidence.
// Price and indicator fields are neutral values, not market data.
func (s *Scorer) Fallback(symbol string, tf domrepo.Timeframe) *models.SignalRecord {
	trend, dir := models.TrendBearish, models.DirectionPut
	if s.rnd.Intn(2) == 0 {
		trend, dir = models.TrendBullish, models.DirectionCall
	}
	conf := fallbackConfLow + s.rnd.Float64()*(fallbackConfHigh-fallbackConfLow)
	conf = clip(round1(conf), s.cfg.MinConfidence, s.cfg.MaxConfidence)
	return &models.SignalRecord{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Timeframe:   string(tf),
		Direction:   dir,
		Trend:       trend,
		Confidence:  conf,
		Score:       fallbackScore,
		Price:       1.0,
		RSI:         50,
		MACD:        0,
		StochK:      50,
		EMA20:       1.0,
		EMA50:       1.0,
		Volatility:  0.5,
		VolumeRatio: 1.0,
		Fallback:    true,
		CreatedAt:   s.now(),
	}
}

// fetch retrieves history with bounded retries under a per-call timeout.
func (s *Scorer) fetch(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.OHLCBar, error) {
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	attempts := s.cfg.FetchAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		var bars []models.OHLCBar
		bars, err = s.md.FetchOHLC(ctx, symbol, tf.Interval(), tf.Lookback())
		if err == nil {
			if len(bars) >= indicator.MinBars {
				return bars, nil
			}
			err = fmt.Errorf("%w: got %d bars", indicator.ErrInsufficientData, len(bars))
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * s.cfg.FetchBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, err
}

func stabilityBonus(volatility float64) int {
	switch {
	case volatility < tightVolatility:
		return tightStability
	case volatility < looseVolatility:
		return looseStability
	default:
		return 0
	}
}

func count(conds ...bool) int {
	n := 0
	for _, c := range conds {
		if c {
			n++
		}
	}
	return n
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
