package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	domsvc "SignalBot/internal/domain/service"
	"SignalBot/pkg/logger"
	"SignalBot/pkg/metrics"
)

// RankingSource provides the latest ranked scan for a class.
type RankingSource interface {
	Get(class models.SignalClass) (ScanResult, bool)
}

// FilterConfig tunes selection.
type FilterConfig struct {
	RecencySize   int
	LossThreshold int
	Cooldown      time.Duration
	HighTier      int
	HighBonus     float64
	MidTier       int
	MidBonus      float64
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		RecencySize:   5,
		LossThreshold: 2,
		Cooldown:      time.Hour,
		HighTier:      92,
		HighBonus:     25,
		MidTier:       85,
		MidBonus:      15,
	}
}

// SelectRequest identifies who is asking and what they already hold.
type SelectRequest struct {
	Class models.SignalClass
	// Consumer scopes the recency list; empty means the shared list.
	Consumer  string
	Positions []models.OpenPosition
}

// FilterOption configures SelectionFilter.
type FilterOption func(*SelectionFilter)

func WithFilterClock(c domsvc.Clock) FilterOption {
	return func(f *SelectionFilter) {
		if c != nil {
			f.now = c
		}
	}
}

func WithFilterLogger(l *logger.Logger) FilterOption {
	return func(f *SelectionFilter) {
		if l != nil {
			f.log = l
		}
	}
}

func WithFilterMetrics(m domrepo.Metrics) FilterOption {
	return func(f *SelectionFilter) {
		if m != nil {
			f.metrics = m
		}
	}
}

// classState is the mutable selection state of one class. Its mutex
// serializes every read and write of the maps.
type classState struct {
	mu        sync.Mutex
	recency   map[string][]string // consumer -> instrument names, oldest first
	losses    map[string]int
	suspended map[string]time.Time
}

func newClassState() *classState {
	return &classState{
		recency:   make(map[string][]string),
		losses:    make(map[string]int),
		suspended: make(map[string]time.Time),
	}
}

// SelectionFilter picks one candidate from the cached ranking while keeping
// picks diverse and sitting out instruments on a losing streak.
type SelectionFilter struct {
	source RankingSource
	cfg    FilterConfig

	states map[models.SignalClass]*classState

	now     domsvc.Clock
	log     *logger.Logger
	metrics domrepo.Metrics
}

func NewSelectionFilter(source RankingSource, cfg FilterConfig, opts ...FilterOption) *SelectionFilter {
	def := DefaultFilterConfig()
	if cfg.RecencySize <= 0 {
		cfg.RecencySize = def.RecencySize
	}
	if cfg.LossThreshold <= 0 {
		cfg.LossThreshold = def.LossThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HighTier <= 0 {
		cfg.HighTier, cfg.HighBonus = def.HighTier, def.HighBonus
	}
	if cfg.MidTier <= 0 {
		cfg.MidTier, cfg.MidBonus = def.MidTier, def.MidBonus
	}
	f := &SelectionFilter{
		source: source,
		cfg:    cfg,
		states: map[models.SignalClass]*classState{
			models.ClassShort: newClassState(),
			models.ClassLong:  newClassState(),
		},
		now:     domsvc.SystemClock,
		log:     logger.Nop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type scored struct {
	cand  models.Candidate
	score float64
}

// Select returns the best remaining candidate for req.Class.
func (f *SelectionFilter) Select(req SelectRequest) (models.Candidate, error) {
	st, ok := f.states[req.Class]
	if !ok {
		return models.Candidate{}, fmt.Errorf("%w: %q", ErrUnknownClass, req.Class)
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	res, ok := f.source.Get(req.Class)
	if !ok || len(res.Candidates) == 0 {
		return models.Candidate{}, ErrNoCandidate
	}
	f.expire(st)

	open := make(map[models.OpenPosition]struct{}, len(req.Positions))
	openAny := make(map[string]struct{})
	for _, p := range req.Positions {
		if p.Timeframe == "" {
			openAny[p.Instrument] = struct{}{}
			continue
		}
		open[p] = struct{}{}
	}

	eligible := make([]models.Candidate, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		if _, held := open[models.OpenPosition{Instrument: c.Instrument.Name, Timeframe: c.Timeframe}]; held {
			continue
		}
		if _, held := openAny[c.Instrument.Name]; held {
			continue
		}
		if _, banned := st.suspended[c.Instrument.Name]; banned {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return models.Candidate{}, ErrNoCandidate
	}

	recent := make(map[string]struct{}, len(st.recency[req.Consumer]))
	for _, name := range st.recency[req.Consumer] {
		recent[name] = struct{}{}
	}
	fresh := make([]models.Candidate, 0, len(eligible))
	for _, c := range eligible {
		if _, seen := recent[c.Instrument.Name]; !seen {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		f.log.Debug("recency filter waived",
			logger.String("class", string(req.Class)),
			logger.String("consumer", req.Consumer))
		fresh = eligible
	}

	ranked := make([]scored, len(fresh))
	for i, c := range fresh {
		ranked[i] = scored{cand: c, score: c.Signal.Confidence + f.tierBonus(c.Instrument.Payout)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	best := ranked[0].cand

	list := append(st.recency[req.Consumer], best.Instrument.Name)
	if len(list) > f.cfg.RecencySize {
		list = list[len(list)-f.cfg.RecencySize:]
	}
	st.recency[req.Consumer] = list

	f.metrics.RecordSelection(string(req.Class), best.Instrument.Name)
	f.log.Info("signal selected",
		logger.String("class", string(req.Class)),
		logger.String("instrument", best.Instrument.Name),
		logger.String("timeframe", best.Timeframe),
		logger.Float64("score", ranked[0].score))
	return best, nil
}

// ReportOutcome updates the loss streak for instrument within class. A win
// clears the streak and any suspension; reaching the loss threshold suspends
// the instrument for the cooldown window.
func (f *SelectionFilter) ReportOutcome(instrument string, class models.SignalClass, won bool) error {
	st, ok := f.states[class]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	f.expire(st)
	f.metrics.RecordOutcome(string(class), won)
	if won {
		delete(st.losses, instrument)
		delete(st.suspended, instrument)
		return nil
	}
	st.losses[instrument]++
	if st.losses[instrument] >= f.cfg.LossThreshold {
		if _, already := st.suspended[instrument]; !already {
			until := f.now().Add(f.cfg.Cooldown)
			st.suspended[instrument] = until
			f.log.Warn("instrument suspended after loss streak",
				logger.String("class", string(class)),
				logger.String("instrument", instrument),
				logger.Int("losses", st.losses[instrument]),
				logger.String("until", until.Format(time.RFC3339)))
		}
	}
	return nil
}

// Suspension reports whether instrument is suspended for class and until when.
func (f *SelectionFilter) Suspension(instrument string, class models.SignalClass) (time.Time, bool) {
	st, ok := f.states[class]
	if !ok {
		return time.Time{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	f.expire(st)
	until, ok := st.suspended[instrument]
	return until, ok
}

// Recent returns the recency list for class and consumer, oldest first.
func (f *SelectionFilter) Recent(class models.SignalClass, consumer string) []string {
	st, ok := f.states[class]
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string(nil), st.recency[consumer]...)
}

// expire drops elapsed suspensions together with their loss counters.
// Callers hold st.mu.
func (f *SelectionFilter) expire(st *classState) {
	now := f.now()
	for name, until := range st.suspended {
		if !now.Before(until) {
			delete(st.suspended, name)
			delete(st.losses, name)
		}
	}
}

func (f *SelectionFilter) tierBonus(payout int) float64 {
	switch {
	case payout >= f.cfg.HighTier:
		return f.cfg.HighBonus
	case payout >= f.cfg.MidTier:
		return f.cfg.MidBonus
	default:
		return 0
	}
}
