package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	"SignalBot/internal/handler/api"
	"SignalBot/internal/handler/ws"
	mid "SignalBot/internal/middleware"
	internalrepo "SignalBot/internal/repository"
	icache "SignalBot/internal/service/cache"
	"SignalBot/internal/service/catalog"
	"SignalBot/internal/service/marketdata"
	"SignalBot/internal/service/notify"
	"SignalBot/internal/service/scorer"
	"SignalBot/internal/service/stake"
	"SignalBot/internal/services/commentary"
	"SignalBot/internal/usecase"
	"SignalBot/pkg/cache"
	pkgch "SignalBot/pkg/clickhouse"
	"SignalBot/pkg/config"
	xhttp "SignalBot/pkg/http"
	pkgkafka "SignalBot/pkg/kafka"
	"SignalBot/pkg/logger"
	"SignalBot/pkg/metrics"
	"SignalBot/pkg/queue"
	"SignalBot/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	lgr, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
		Service:    "signalbot",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return lgr, nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op one when
// metrics are switched off.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideCatalog builds the instrument catalog from config, falling back to
// the built-in one.
func ProvideCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if len(cfg.Catalog) == 0 {
		return catalog.Default(), nil
	}
	groups := make([]catalog.Group, 0, len(cfg.Catalog))
	for _, g := range cfg.Catalog {
		insts := make([]models.Instrument, 0, len(g.Instruments))
		for _, i := range g.Instruments {
			class := models.InstrumentRegular
			if i.OTC {
				class = models.InstrumentOTC
			}
			insts = append(insts, models.Instrument{
				Name:   i.Name,
				Symbol: i.Symbol,
				Class:  class,
				Payout: i.Payout,
			})
		}
		groups = append(groups, catalog.Group{Name: g.Name, Instruments: insts})
	}
	cat, err := catalog.New(groups)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return cat, nil
}

// ProvideScanPlan converts the configured plan, or uses the default one, and
// validates it against the catalog.
func ProvideScanPlan(cfg *config.Config, cat *catalog.Catalog) (usecase.ScanPlan, error) {
	plan := usecase.DefaultScanPlan()
	for name, cp := range cfg.ScanPlan {
		class := models.SignalClass(name)
		if !class.Valid() {
			return nil, fmt.Errorf("scan plan: %w: %q", usecase.ErrUnknownClass, name)
		}
		tfs := make([]domrepo.Timeframe, 0, len(cp.Timeframes))
		for _, tf := range cp.Timeframes {
			tfs = append(tfs, domrepo.Timeframe(strings.ToUpper(strings.TrimSpace(tf))))
		}
		gates := make([]usecase.GroupGate, 0, len(cp.Groups))
		for _, g := range cp.Groups {
			gates = append(gates, usecase.GroupGate{Group: g.Group, MinConfidence: g.MinConfidence})
		}
		plan[class] = usecase.ClassPlan{
			Timeframes:     tfs,
			Groups:         gates,
			FallbackGroups: cp.FallbackGroups,
		}
	}
	if err := plan.Validate(cat); err != nil {
		return nil, err
	}
	return plan, nil
}

// ProvideRedisCache connects to redis. It returns nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config, lgr *logger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/4, 5*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	lgr.Info("redis connected",
		logger.String("host", cfg.Redis.Host),
		logger.Int("port", cfg.Redis.Port))
	cleanup := func() {
		if err := rc.Close(); err != nil {
			lgr.Warn("redis close error", logger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideBarCache layers process memory over redis, or uses memory alone.
func ProvideBarCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.MemoryItems))
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Redis.MemoryItems),
		cache.WithLayeredMemoryTTL(cfg.Redis.MemoryTTL),
	)
}

// ProvideMarketData creates the Yahoo chart provider.
func ProvideMarketData(cfg *config.Config, bars cache.Service, lgr *logger.Logger) domrepo.MarketData {
	md := cfg.MarketData
	return marketdata.NewYahoo(
		marketdata.WithBaseURL(md.BaseURL),
		marketdata.WithTimeout(md.Timeout),
		marketdata.WithRateLimit(md.RateCapacity, md.RatePerSecond),
		marketdata.WithBreaker(md.BreakerFailures, md.BreakerOpenFor),
		marketdata.WithCache(bars, md.CacheTTL),
		marketdata.WithLogger(lgr),
	)
}

// ProvideScorer creates the instrument scorer.
func ProvideScorer(cfg *config.Config, md domrepo.MarketData, lgr *logger.Logger, m domrepo.Metrics) *scorer.Scorer {
	s := cfg.Signals
	return scorer.New(md,
		scorer.WithConfidenceBounds(s.MinConfidence, s.MaxConfidence),
		scorer.WithRetry(s.FetchAttempts, s.FetchBackoff),
		scorer.WithFetchTimeout(s.FetchTimeout),
		scorer.WithLogger(lgr),
		scorer.WithMetrics(m),
	)
}

// ProvideOrchestrator creates the scan orchestrator with its ranking cache.
func ProvideOrchestrator(cfg *config.Config, sc *scorer.Scorer, cat *catalog.Catalog, plan usecase.ScanPlan, lgr *logger.Logger, m domrepo.Metrics) *usecase.ScanOrchestrator {
	s := cfg.Signals
	return usecase.NewScanOrchestrator(sc, cat, plan,
		usecase.OrchestratorConfig{
			CacheTTL:      s.CacheTTL,
			TopN:          s.TopN,
			PayoutBonus:   s.PayoutBonus,
			PayoutTier:    s.PayoutTier,
			Concurrency:   s.Concurrency,
			RankFallbacks: s.RanksFallbacks(),
		},
		usecase.NewScanCache(),
		usecase.WithOrchestratorLogger(lgr),
		usecase.WithOrchestratorMetrics(m),
	)
}

// ProvideSelectionFilter creates the selection filter reading the
// orchestrator's cache.
func ProvideSelectionFilter(cfg *config.Config, orch *usecase.ScanOrchestrator, lgr *logger.Logger, m domrepo.Metrics) *usecase.SelectionFilter {
	s := cfg.Signals
	return usecase.NewSelectionFilter(orch.Cache(),
		usecase.FilterConfig{
			RecencySize:   s.RecencySize,
			LossThreshold: s.LossThreshold,
			Cooldown:      s.Cooldown,
			HighTier:      s.HighTier,
			HighBonus:     s.HighBonus,
			MidTier:       s.MidTier,
			MidBonus:      s.MidBonus,
		},
		usecase.WithFilterLogger(lgr),
		usecase.WithFilterMetrics(m),
	)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the signal
// schema. It returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, lgr *logger.Logger) (*pkgch.Client, func(), error) {
	ch := cfg.ClickHouse
	if !ch.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
		pkgch.WithLogger(lgr),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SignalSchema(ch.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			lgr.Warn("clickhouse close error", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideSignalStore returns the ClickHouse signal store, or nil without a
// client.
func ProvideSignalStore(cfg *config.Config, client *pkgch.Client, lgr *logger.Logger) domrepo.SignalStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewCHSignalStore(client.DB(), cfg.ClickHouse.Database, lgr)
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config, lgr *logger.Logger) (*pkgkafka.Producer, error) {
	k := cfg.Kafka
	if !k.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithClientID(k.ClientID),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(k.Producer.WriteTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(lgr),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher wraps the Kafka publisher in a retry buffer. The
// publisher owns the producer and closes it.
func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer, lgr *logger.Logger, m domrepo.Metrics) *mid.BufferedPublisher {
	if producer == nil {
		return nil
	}
	return mid.NewBufferedPublisher(
		internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic),
		m,
		mid.WithBufferSize(cfg.Kafka.Producer.BufferSize),
		mid.WithBufferLogger(lgr),
	)
}

// ProvideNotifyQueue creates the redis job queue that delivers Telegram
// messages. It returns nil when Telegram delivery is disabled.
func ProvideNotifyQueue(cfg *config.Config, rc *cache.RedisCache, lgr *logger.Logger) *queue.RedisQueue {
	tg := cfg.Telegram
	if !tg.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(lgr,
		&queue.QueueConfig{
			Workers:    tg.Workers,
			RetryLimit: tg.RetryLimit,
			RetryDelay: tg.RetryDelay,
		},
		rc.Client(),
		queue.ModeProducerConsumer,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":notify"),
	)
	sender := notify.NewTelegram(notify.TelegramConfig{
		BotToken: tg.BotToken,
		BaseURL:  tg.BaseURL,
		RefLink:  tg.RefLink,
		Timeout:  tg.Timeout,
	}, lgr)
	q.RegisterJob(notify.NewJob(sender, lgr))
	return q
}

// ProvideNotifier enqueues deliveries on the notify queue.
func ProvideNotifier(q *queue.RedisQueue) domrepo.Notifier {
	if q == nil {
		return nil
	}
	return notify.NewQueued(q)
}

// ProvideEnricher creates the OpenRouter commentary client. It returns nil
// when enrichment is disabled.
func ProvideEnricher(cfg *config.Config, lgr *logger.Logger) domrepo.Enricher {
	or := cfg.OpenRouter
	if !or.Enabled {
		return nil
	}
	c := commentary.DefaultConfig()
	c.APIKey = or.APIKey
	if or.BaseURL != "" {
		c.BaseURL = or.BaseURL
	}
	if or.Model != "" {
		c.Model = or.Model
	}
	if or.MaxTokens > 0 {
		c.MaxTokens = or.MaxTokens
	}
	if or.Temperature > 0 {
		c.Temperature = or.Temperature
	}
	if or.Timeout > 0 {
		c.Timeout = or.Timeout
	}
	if or.Attempts > 0 {
		c.Attempts = or.Attempts
	}
	if or.CacheTTL > 0 {
		c.CacheTTL = or.CacheTTL
	}
	if or.Language != "" {
		c.Language = or.Language
	}
	return commentary.NewOpenRouter(c, icache.NewTTLCache(), lgr)
}

// ProvideHub creates the websocket broadcast hub.
func ProvideHub(cfg *config.Config, lgr *logger.Logger) *ws.Hub {
	return ws.NewHub(lgr, ws.WithPingInterval(cfg.Server.WSPingInterval))
}

// ProvideSignalService assembles the signal service. Optional collaborators
// are only attached when present.
func ProvideSignalService(
	cfg *config.Config,
	orch *usecase.ScanOrchestrator,
	filter *usecase.SelectionFilter,
	store domrepo.SignalStore,
	publisher *mid.BufferedPublisher,
	notifier domrepo.Notifier,
	enricher domrepo.Enricher,
	hub *ws.Hub,
	lgr *logger.Logger,
	m domrepo.Metrics,
) *usecase.SignalService {
	priorities := usecase.DefaultPriorityTimeouts()
	for k, v := range cfg.Priorities {
		priorities[k] = v
	}
	opts := []usecase.ServiceOption{
		usecase.WithServiceLogger(lgr),
		usecase.WithServiceMetrics(m),
		usecase.WithBroadcaster(hub),
	}
	if store != nil {
		opts = append(opts, usecase.WithSignalStore(store))
	}
	if publisher != nil {
		opts = append(opts, usecase.WithSignalPublisher(publisher))
	}
	if notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	if enricher != nil {
		opts = append(opts, usecase.WithEnricher(enricher))
	}
	return usecase.NewSignalService(orch, filter, usecase.ServiceConfig{
		PriorityTimeouts:  priorities,
		EnrichTimeout:     cfg.Signals.EnrichTimeout,
		SideEffectTimeout: cfg.Signals.SideEffectTimeout,
	}, opts...)
}

// ProvideStakeRegistry creates the stake strategy registry.
func ProvideStakeRegistry(cfg *config.Config) *stake.Registry {
	s := cfg.Stake
	return stake.NewRegistry(stake.Config{
		MartingaleMultiplier: s.MartingaleMultiplier,
		PercentageShare:      s.PercentageShare,
		DAlembertUnit:        s.DAlembertUnit,
		DAlembertShare:       s.DAlembertShare,
		ConservativeShare:    s.ConservativeShare,
	})
}

// ProvideKafkaConsumer creates the outcome consumer. It returns nil when
// Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, svc *usecase.SignalService, lgr *logger.Logger, m domrepo.Metrics) (*pkgkafka.Consumer, error) {
	k := cfg.Kafka
	if !k.Enabled || k.OutcomesTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(lgr),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TracingHook{Log: lgr, Slow: time.Second})
	consumer.RegisterHandler(usecase.NewKafkaOutcomesHandler(k.OutcomesTopic, svc, m))
	return consumer, nil
}

// ProvideHealthChecks collects a check per enabled dependency.
func ProvideHealthChecks(client *pkgch.Client, rc *cache.RedisCache) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if client != nil {
		checks["clickhouse"] = client.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}
	}
	return checks
}

// ProvideHandlers lists every HTTP route group.
func ProvideHandlers(
	cfg *config.Config,
	svc *usecase.SignalService,
	reg *stake.Registry,
	hub *ws.Hub,
	checks map[string]api.HealthCheck,
	lgr *logger.Logger,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewSignalsEchoHandler(lgr, svc,
			api.WithPickRateLimit(cfg.Server.PickRate.Capacity, cfg.Server.PickRate.RefillPerSec),
			api.WithStakeRegistry(reg),
		),
		api.NewHealthHandler(checks),
		hub,
	}
}

// ProvideHTTPServer creates the Echo server with every handler registered.
func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, lgr *logger.Logger) *xhttp.Server {
	s := cfg.Server
	return xhttp.NewServer(lgr, handlers,
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithSlowThreshold(s.SlowThreshold),
		xhttp.WithCORS(true, s.AllowOrigins...),
	)
}

// ProvideApp creates the application with every long-running component
// attached to its lifecycle.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	notifyQueue *queue.RedisQueue,
	publisher *mid.BufferedPublisher,
	producer *pkgkafka.Producer,
	hub *ws.Hub,
) *server.App {
	opts := []server.Option{
		server.WithCloser("websocket hub", func() error {
			hub.Close()
			return nil
		}),
	}
	if notifyQueue != nil {
		opts = append(opts, server.WithService("notify queue", notifyQueue))
	}
	if consumer != nil {
		opts = append(opts, server.WithService("outcome consumer", consumer))
	}
	if publisher != nil {
		opts = append(opts,
			server.WithBackground("signal publisher", publisher.Start),
			server.WithCloser("signal publisher", publisher.Close),
		)
	}
	if producer != nil {
		opts = append(opts, server.WithLogPublisher(producer))
	}
	return server.New(cfg, lgr, httpServer, opts...)
}
