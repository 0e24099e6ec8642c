package usecase

import (
	"context"
	"errors"
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

var (
	ErrUnknownClass = errors.New("unknown signal class")
	ErrNoCandidate  = errors.New("no candidate available")
)

// InstrumentScorer scores one (symbol, timeframe) pair. Score must always
// return a record.
type InstrumentScorer interface {
	Score(ctx context.Context, symbol string, tf domrepo.Timeframe) *models.SignalRecord
	Fallback(symbol string, tf domrepo.Timeframe) *models.SignalRecord
}

// Catalog resolves group names to instruments.
type Catalog interface {
	Group(name string) ([]models.Instrument, error)
}

// OrchestratorConfig tunes scanning and ranking.
type OrchestratorConfig struct {
	CacheTTL      time.Duration
	TopN          int
	PayoutBonus   float64
	PayoutTier    int
	Concurrency   int
	RankFallbacks bool
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		CacheTTL:      180 * time.Second,
		TopN:          3,
		PayoutBonus:   25,
		PayoutTier:    92,
		Concurrency:   16,
		RankFallbacks: true,
	}
}

// OrchestratorOption configures ScanOrchestrator.
type OrchestratorOption func(*ScanOrchestrator)

func WithOrchestratorClock(c domsvc.Clock) OrchestratorOption {
	return func(o *ScanOrchestrator) {
		if c != nil {
			o.now = c
		}
	}
}

func WithOrchestratorRandom(r domsvc.Random) OrchestratorOption {
	return func(o *ScanOrchestrator) {
		if r != nil {
			o.rnd = r
		}
	}
}

func WithOrchestratorLogger(l *logger.Logger) OrchestratorOption {
	return func(o *ScanOrchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithOrchestratorMetrics(m domrepo.Metrics) OrchestratorOption {
	return func(o *ScanOrchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// ScanOrchestrator fans the scorer out across the scan plan, ranks the gated
// results and caches them per class.
type ScanOrchestrator struct {
	scorer  InstrumentScorer
	catalog Catalog
	plan    ScanPlan
	cfg     OrchestratorConfig
	cache   *ScanCache

	locks map[models.SignalClass]*sync.Mutex

	now     domsvc.Clock
	rnd     domsvc.Random
	log     *logger.Logger
	metrics domrepo.Metrics
}

func NewScanOrchestrator(scorer InstrumentScorer, catalog Catalog, plan ScanPlan, cfg OrchestratorConfig, cache *ScanCache, opts ...OrchestratorOption) *ScanOrchestrator {
	def := DefaultOrchestratorConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.PayoutTier <= 0 {
		cfg.PayoutTier, cfg.PayoutBonus = def.PayoutTier, def.PayoutBonus
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cache == nil {
		cache = NewScanCache()
	}
	o := &ScanOrchestrator{
		scorer:  scorer,
		catalog: catalog,
		plan:    plan,
		cfg:     cfg,
		cache:   cache,
		locks:   make(map[models.SignalClass]*sync.Mutex),
		now:     domsvc.SystemClock,
		rnd:     domsvc.NewLockedRandom(time.Now().UnixNano()),
		log:     logger.Nop(),
		metrics: metrics.Nop{},
	}
	for class := range plan {
		o.locks[class] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Cache exposes the ranking cache read by the selection filter.
func (o *ScanOrchestrator) Cache() *ScanCache { return o.cache }

type scanTask struct {
	seq  int
	inst models.Instrument
	tf   domrepo.Timeframe
	gate float64
}

type scanHit struct {
	seq  int
	cand models.Candidate
	rank float64
}

// Scan returns the ranked candidates for class. Long scans are served from a
// fresh cache unless force is set; short scans always run.
func (o *ScanOrchestrator) Scan(ctx context.Context, class models.SignalClass, force bool) (ScanResult, error) {
	plan, ok := o.plan[class]
	if !ok {
		return ScanResult{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	mu := o.locks[class]
	mu.Lock()
	defer mu.Unlock()

	if class == models.ClassLong && !force {
		if r, ok := o.cache.Fresh(class, o.now(), o.cfg.CacheTTL); ok {
			o.metrics.RecordCacheHit(string(class))
			o.log.Debug("serving cached scan",
				logger.String("class", string(class)),
				logger.Int("candidates", len(r.Candidates)))
			r.Cached = true
			return r, nil
		}
	}

	start := time.Now()
	tasks, err := o.tasks(plan)
	if err != nil {
		return ScanResult{}, err
	}
	hits := o.run(ctx, tasks)

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank > hits[j].rank
		}
		return hits[i].seq < hits[j].seq
	})
	if len(hits) > o.cfg.TopN {
		hits = hits[:o.cfg.TopN]
	}

	res := ScanResult{Class: class, ScannedAt: o.now()}
	for _, h := range hits {
		res.Candidates = append(res.Candidates, h.cand)
	}
	if len(res.Candidates) == 0 {
		cand, err := o.fallbackCandidate(plan)
		if err != nil {
			return ScanResult{}, err
		}
		res.Candidates = []models.Candidate{cand}
		res.Synthetic = true
		o.metrics.RecordFallback("empty_scan")
	}
	o.cache.Put(res)

	o.metrics.RecordScan(string(class), time.Since(start).Seconds(), len(res.Candidates))
	o.log.Info("market scan complete",
		logger.String("class", string(class)),
		logger.Int("tasks", len(tasks)),
		logger.Int("candidates", len(res.Candidates)),
		logger.Bool("synthetic", res.Synthetic),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (o *ScanOrchestrator) tasks(plan ClassPlan) ([]scanTask, error) {
	var out []scanTask
	for _, tf := range plan.Timeframes {
		for _, gg := range plan.Groups {
			insts, err := o.catalog.Group(gg.Group)
			if err != nil {
				return nil, err
			}
			for _, inst := range insts {
				out = append(out, scanTask{seq: len(out), inst: inst, tf: tf, gate: gg.MinConfidence})
			}
		}
	}
	return out, nil
}

// run scores every task with bounded concurrency. A panicking or cancelled
// task is dropped without affecting the rest.
func (o *ScanOrchestrator) run(ctx context.Context, tasks []scanTask) []scanHit {
	ch := make(chan scanHit, len(tasks))
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, t := range tasks {
		wg.Add(1)
		go func(t scanTask) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.metrics.RecordError("scan_task_panic")
					o.log.Error("scan task panicked",
						logger.String("instrument", t.inst.Name),
						logger.String("timeframe", string(t.tf)),
						logger.Any("panic", r))
				}
			}()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			rec := o.scorer.Score(ctx, t.inst.Symbol, t.tf)
			if rec == nil {
				return
			}
			if rec.Fallback && !o.cfg.RankFallbacks {
				return
			}
			if rec.Confidence < t.gate {
				return
			}
			ch <- scanHit{
				seq:  t.seq,
				cand: models.Candidate{Instrument: t.inst, Signal: rec, Timeframe: string(t.tf)},
				rank: rec.Confidence + o.payoutBonus(t.inst.Payout),
			}
		}(t)
	}
	go func() { wg.Wait(); close(ch) }()

	hits := make([]scanHit, 0, len(tasks))
	for h := range ch {
		hits = append(hits, h)
	}
	return hits
}

func (o *ScanOrchestrator) payoutBonus(payout int) float64 {
	if payout >= o.cfg.PayoutTier {
		return o.cfg.PayoutBonus
	}
	return 0
}

// fallbackCandidate draws a random OTC instrument from the class's fallback
// pool and a random timeframe from its plan.
func (o *ScanOrchestrator) fallbackCandidate(plan ClassPlan) (models.Candidate, error) {
	var pool []models.Instrument
	for _, g := range plan.FallbackGroups {
		insts, err := o.catalog.Group(g)
		if err != nil {
			return models.Candidate{}, err
		}
		for _, inst := range insts {
			if inst.IsOTC() {
				pool = append(pool, inst)
			}
		}
	}
	if len(pool) == 0 {
		return models.Candidate{}, fmt.Errorf("%w: empty fallback pool", ErrNoCandidate)
	}
	inst := pool[o.rnd.Intn(len(pool))]
	tf := plan.Timeframes[o.rnd.Intn(len(plan.Timeframes))]
	rec := o.scorer.Fallback(inst.Symbol, tf)
	o.log.Info("no instrument cleared the gates, using fallback candidate",
		logger.String("instrument", inst.Name),
		logger.String("timeframe", string(tf)),
		logger.Int("payout", inst.Payout))
	return models.Candidate{Instrument: inst, Signal: rec, Timeframe: string(tf)}, nil
}
