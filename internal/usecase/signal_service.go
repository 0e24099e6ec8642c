package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	domsvc "SignalBot/internal/domain/service"
	"SignalBot/internal/service/catalog"
	"SignalBot/pkg/logger"
	"SignalBot/pkg/metrics"
)

var ErrHistoryUnavailable = errors.New("signal history is not configured")

// Priority tiers bound how long a pick may take end to end.
const (
	PriorityAdmin = "admin"
	PriorityVIP   = "vip"
	PriorityLong  = "long"
	PriorityShort = "short"
	PriorityFree  = "free"
)

// DefaultPriorityTimeouts returns the per-tier pick deadlines.
func DefaultPriorityTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		PriorityAdmin: 10 * time.Second,
		PriorityVIP:   15 * time.Second,
		PriorityLong:  20 * time.Second,
		PriorityShort: 20 * time.Second,
		PriorityFree:  45 * time.Second,
	}
}

// Broadcaster pushes deliveries to live subscribers.
type Broadcaster interface {
	Broadcast(d *models.Delivery)
}

// ServiceConfig tunes the pick pipeline.
type ServiceConfig struct {
	PriorityTimeouts  map[string]time.Duration
	EnrichTimeout     time.Duration
	SideEffectTimeout time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		PriorityTimeouts:  DefaultPriorityTimeouts(),
		EnrichTimeout:     8 * time.Second,
		SideEffectTimeout: 5 * time.Second,
	}
}

// PickParams is one pick request.
type PickParams struct {
	Class     models.SignalClass
	Consumer  string
	Priority  string
	Force     bool
	Enrich    bool
	Notify    bool
	ChatID    string
	Positions []models.OpenPosition
}

// ServiceOption configures SignalService.
type ServiceOption func(*SignalService)

func WithSignalStore(s domrepo.SignalStore) ServiceOption {
	return func(svc *SignalService) { svc.store = s }
}

func WithSignalPublisher(p domrepo.SignalPublisher) ServiceOption {
	return func(svc *SignalService) { svc.publisher = p }
}

func WithNotifier(n domrepo.Notifier) ServiceOption {
	return func(svc *SignalService) { svc.notifier = n }
}

func WithEnricher(e domrepo.Enricher) ServiceOption {
	return func(svc *SignalService) { svc.enricher = e }
}

func WithBroadcaster(b Broadcaster) ServiceOption {
	return func(svc *SignalService) { svc.feed = b }
}

func WithServiceLogger(l *logger.Logger) ServiceOption {
	return func(svc *SignalService) {
		if l != nil {
			svc.log = l
		}
	}
}

func WithServiceMetrics(m domrepo.Metrics) ServiceOption {
	return func(svc *SignalService) {
		if m != nil {
			svc.metrics = m
		}
	}
}

func WithServiceClock(c domsvc.Clock) ServiceOption {
	return func(svc *SignalService) {
		if c != nil {
			svc.now = c
		}
	}
}

// SignalService runs scan, selection and delivery side effects. Side effects
// (history, publishing, notification, live feed, commentary) never fail a
// pick; their errors are logged and counted.
type SignalService struct {
	orch   *ScanOrchestrator
	filter *SelectionFilter
	cfg    ServiceConfig

	store     domrepo.SignalStore
	publisher domrepo.SignalPublisher
	notifier  domrepo.Notifier
	enricher  domrepo.Enricher
	feed      Broadcaster

	log     *logger.Logger
	metrics domrepo.Metrics
	now     domsvc.Clock
}

func NewSignalService(orch *ScanOrchestrator, filter *SelectionFilter, cfg ServiceConfig, opts ...ServiceOption) *SignalService {
	if cfg.PriorityTimeouts == nil {
		cfg.PriorityTimeouts = DefaultPriorityTimeouts()
	}
	svc := &SignalService{
		orch:    orch,
		filter:  filter,
		cfg:     cfg,
		log:     logger.Nop(),
		metrics: metrics.Nop{},
		now:     domsvc.SystemClock,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Timeout returns the pick deadline for a priority tier. Unknown tiers get
// the free tier deadline.
func (s *SignalService) Timeout(priority string) time.Duration {
	if d, ok := s.cfg.PriorityTimeouts[priority]; ok && d > 0 {
		return d
	}
	return s.cfg.PriorityTimeouts[PriorityFree]
}

// Scan runs or serves the ranking for class.
func (s *SignalService) Scan(ctx context.Context, class models.SignalClass, force bool) (ScanResult, error) {
	return s.orch.Scan(ctx, class, force)
}

// Pick scans, selects one candidate for the consumer and delivers it.
func (s *SignalService) Pick(ctx context.Context, p PickParams) (*models.Delivery, error) {
	if d := s.Timeout(p.Priority); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if _, err := s.orch.Scan(ctx, p.Class, p.Force); err != nil {
		return nil, err
	}
	cand, err := s.filter.Select(SelectRequest{Class: p.Class, Consumer: p.Consumer, Positions: p.Positions})
	if err != nil {
		return nil, err
	}

	d := NewDelivery(cand, p.Class)
	if p.Enrich && s.enricher != nil {
		s.enrich(ctx, d)
	}
	s.persist(ctx, d)
	if p.Notify && s.notifier != nil && p.ChatID != "" {
		s.notify(ctx, p.ChatID, d)
	}
	if s.feed != nil {
		s.feed.Broadcast(d)
	}

	s.log.Info("signal delivered",
		logger.String("id", d.Signal.ID),
		logger.String("class", string(d.Class)),
		logger.String("consumer", p.Consumer),
		logger.String("instrument", d.Instrument.Name),
		logger.String("timeframe", d.Timeframe),
		logger.String("direction", string(d.Signal.Direction)),
		logger.Float64("confidence", d.Signal.Confidence),
		logger.Bool("fallback", d.Signal.Fallback))
	return d, nil
}

// NewDelivery decorates a candidate with broker name and expiration.
func NewDelivery(c models.Candidate, class models.SignalClass) *models.Delivery {
	tf := domrepo.Timeframe(c.Timeframe)
	return &models.Delivery{
		Candidate:       c,
		Class:           class,
		BrokerName:      catalog.BrokerName(c.Instrument.Name),
		ExpirationLabel: domrepo.ExpirationLabel(c.Timeframe),
		ExpirationMins:  tf.ExpirationMinutes(),
	}
}

// ReportOutcome feeds a settlement into the selection filter and the
// history store. Store failures are logged; the filter update is what
// governs future selection.
func (s *SignalService) ReportOutcome(ctx context.Context, o models.Outcome) error {
	if o.Instrument == "" {
		return fmt.Errorf("report outcome: instrument is required")
	}
	if err := s.filter.ReportOutcome(o.Instrument, o.Class, o.Won); err != nil {
		return err
	}
	if o.SettledAt.IsZero() {
		o.SettledAt = s.now()
	}
	if s.store != nil && o.SignalID != "" {
		sctx, cancel := s.sideEffectCtx(ctx)
		defer cancel()
		if err := s.store.UpdateOutcome(sctx, o); err != nil {
			s.metrics.RecordError("history_outcome")
			s.log.Error("store outcome failed",
				logger.String("signal_id", o.SignalID),
				logger.Error(err))
		}
	}
	return nil
}

// History returns stored signals, newest first.
func (s *SignalService) History(ctx context.Context, instrument string, limit int) ([]domrepo.StoredSignal, domrepo.WinStats, error) {
	if s.store == nil {
		return nil, domrepo.WinStats{}, ErrHistoryUnavailable
	}
	rows, err := s.store.History(ctx, instrument, limit)
	if err != nil {
		return nil, domrepo.WinStats{}, err
	}
	stats, err := s.store.WinRate(ctx, instrument, time.Time{})
	if err != nil {
		return nil, domrepo.WinStats{}, err
	}
	return rows, stats, nil
}

// Suspended reports the suspension deadline for an instrument, if any.
func (s *SignalService) Suspended(instrument string, class models.SignalClass) (time.Time, bool) {
	return s.filter.Suspension(instrument, class)
}

func (s *SignalService) enrich(ctx context.Context, d *models.Delivery) {
	ectx := ctx
	if s.cfg.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, s.cfg.EnrichTimeout)
		defer cancel()
	}
	c, err := s.enricher.Enrich(ectx, d)
	if err != nil {
		s.metrics.RecordError("enrich")
		s.log.Warn("commentary unavailable",
			logger.String("instrument", d.Instrument.Name),
			logger.Error(err))
		return
	}
	d.Commentary = c
}

func (s *SignalService) persist(ctx context.Context, d *models.Delivery) {
	if s.store == nil && s.publisher == nil {
		return
	}
	sctx, cancel := s.sideEffectCtx(ctx)
	defer cancel()

	if s.store != nil {
		if err := s.store.Save(sctx, d); err != nil {
			s.metrics.RecordError("history_save")
			s.log.Error("store signal failed", logger.String("id", d.Signal.ID), logger.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(sctx, d); err != nil {
			s.metrics.RecordError("publish")
			s.log.Error("publish signal failed", logger.String("id", d.Signal.ID), logger.Error(err))
		}
	}
}

func (s *SignalService) notify(ctx context.Context, chatID string, d *models.Delivery) {
	sctx, cancel := s.sideEffectCtx(ctx)
	defer cancel()
	if err := s.notifier.Notify(sctx, chatID, d); err != nil {
		s.metrics.RecordError("notify")
		s.log.Error("notify failed",
			logger.String("chat_id", chatID),
			logger.String("id", d.Signal.ID),
			logger.Error(err))
	}
}

// sideEffectCtx detaches from the request deadline so a slow scan does not
// starve persistence, while still bounding it.
func (s *SignalService) sideEffectCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.cfg.SideEffectTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, s.cfg.SideEffectTimeout)
}
