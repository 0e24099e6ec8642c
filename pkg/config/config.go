package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
		AllowOrigins    []string      `yaml:"allow_origins"`
		PickRate        struct {
			Capacity     float64 `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"pick_rate"`
		WSPingInterval time.Duration `yaml:"ws_ping_interval"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
			Warnings       bool          `yaml:"warnings"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Signals    Signals                  `yaml:"signals"`
	ScanPlan   map[string]ClassPlan     `yaml:"scan_plan"`
	Catalog    []CatalogGroup           `yaml:"catalog"`
	MarketData MarketData               `yaml:"market_data"`
	Redis      Redis                    `yaml:"redis"`
	Kafka      Kafka                    `yaml:"kafka"`
	ClickHouse ClickHouse               `yaml:"clickhouse"`
	Telegram   Telegram                 `yaml:"telegram"`
	OpenRouter OpenRouter               `yaml:"openrouter"`
	Stake      Stake                    `yaml:"stake"`
	Priorities map[string]time.Duration `yaml:"priority_timeouts"`
}

// Signals tunes scoring, ranking and selection.
type Signals struct {
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	TopN              int           `yaml:"top_n"`
	PayoutTier        int           `yaml:"payout_tier"`
	PayoutBonus       float64       `yaml:"payout_bonus"`
	Concurrency       int           `yaml:"concurrency"`
	RankFallbacks     *bool         `yaml:"rank_fallbacks"`
	MinConfidence     float64       `yaml:"min_confidence"`
	MaxConfidence     float64       `yaml:"max_confidence"`
	FetchAttempts     int           `yaml:"fetch_attempts"`
	FetchBackoff      time.Duration `yaml:"fetch_backoff"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
	RecencySize       int           `yaml:"recency_size"`
	LossThreshold     int           `yaml:"loss_threshold"`
	Cooldown          time.Duration `yaml:"cooldown"`
	HighTier          int           `yaml:"high_tier"`
	HighBonus         float64       `yaml:"high_bonus"`
	MidTier           int           `yaml:"mid_tier"`
	MidBonus          float64       `yaml:"mid_bonus"`
	EnrichTimeout     time.Duration `yaml:"enrich_timeout"`
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout"`
}

type GroupGate struct {
	Group         string  `yaml:"group"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type ClassPlan struct {
	Timeframes     []string    `yaml:"timeframes"`
	Groups         []GroupGate `yaml:"groups"`
	FallbackGroups []string    `yaml:"fallback_groups"`
}

type CatalogInstrument struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
	Payout int    `yaml:"payout"`
	OTC    bool   `yaml:"otc"`
}

type CatalogGroup struct {
	Name        string              `yaml:"name"`
	Instruments []CatalogInstrument `yaml:"instruments"`
}

type MarketData struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	RateCapacity    float64       `yaml:"rate_capacity"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

type Redis struct {
	Enabled     bool          `yaml:"enabled"`
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	Prefix      string        `yaml:"prefix"`
	MemoryItems int           `yaml:"memory_items"`
	MemoryTTL   time.Duration `yaml:"memory_ttl"`
}

type Kafka struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	ClientID      string   `yaml:"client_id"`
	SignalsTopic  string   `yaml:"signals_topic"`
	OutcomesTopic string   `yaml:"outcomes_topic"`
	RequiredAcks  int      `yaml:"required_acks"`
	Compression   string   `yaml:"compression"`
	Producer      struct {
		MaxAttempts  int           `yaml:"max_attempts"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		BufferSize   int           `yaml:"buffer_size"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id"`
		Workers    int           `yaml:"workers"`
		RetryMax   int           `yaml:"retry_max"`
		BackoffMin time.Duration `yaml:"backoff_min"`
		BackoffMax time.Duration `yaml:"backoff_max"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Database         string        `yaml:"database"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
}

type Telegram struct {
	Enabled    bool          `yaml:"enabled"`
	BotToken   string        `yaml:"bot_token"`
	BaseURL    string        `yaml:"base_url"`
	RefLink    string        `yaml:"ref_link"`
	Timeout    time.Duration `yaml:"timeout"`
	Workers    int           `yaml:"workers"`
	RetryLimit int           `yaml:"retry_limit"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type OpenRouter struct {
	Enabled     bool          `yaml:"enabled"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    int           `yaml:"attempts"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Language    string        `yaml:"language"`
}

type Stake struct {
	MartingaleMultiplier float64 `yaml:"martingale_multiplier"`
	PercentageShare      float64 `yaml:"percentage"`
	DAlembertUnit        float64 `yaml:"dalembert_unit"`
	DAlembertShare       float64 `yaml:"dalembert_share"`
	ConservativeShare    float64 `yaml:"conservative"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads the file and applies environment overrides before
// validating, so secrets may live only in the environment.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.Log.Level)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_REF_LINK", &c.Telegram.RefLink)
	str("OPENROUTER_API_KEY", &c.OpenRouter.APIKey)
	str("OPENROUTER_MODEL", &c.OpenRouter.Model)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_USER", &c.ClickHouse.User)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// RanksFallbacks reports whether gated fallback records compete in the ranking.
// Unset means yes; rank_fallbacks: false opts out.
func (s Signals) RanksFallbacks() bool {
	return s.RankFallbacks == nil || *s.RankFallbacks
}

// ApplyDefaults fills zero values. Sections left out of the file take the
// values the bot runs with by default.
func (c *Config) ApplyDefaults() {
	def := func(dst *time.Duration, v time.Duration) {
		if *dst <= 0 {
			*dst = v
		}
	}
	defInt := func(dst *int, v int) {
		if *dst <= 0 {
			*dst = v
		}
	}
	defFloat := func(dst *float64, v float64) {
		if *dst <= 0 {
			*dst = v
		}
	}
	defStr := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}

	defStr(&c.Environment, "development")
	defStr(&c.Server.Host, "0.0.0.0")
	defInt(&c.Server.Port, 8080)
	def(&c.Server.ReadTimeout, 10*time.Second)
	def(&c.Server.WriteTimeout, 60*time.Second)
	def(&c.Server.ShutdownTimeout, 10*time.Second)
	def(&c.Server.SlowThreshold, 5*time.Second)
	def(&c.Server.WSPingInterval, 30*time.Second)

	defStr(&c.Log.Level, "info")
	defStr(&c.Log.Format, "json")
	defStr(&c.Log.Output, "stdout")
	defStr(&c.Log.Collector.Topic, "signalbot.logs")
	def(&c.Log.Collector.Interval, 30*time.Second)
	defInt(&c.Log.Collector.CountThreshold, 100)

	s := &c.Signals
	def(&s.CacheTTL, 180*time.Second)
	defInt(&s.TopN, 3)
	defInt(&s.PayoutTier, 92)
	defFloat(&s.PayoutBonus, 25)
	defInt(&s.Concurrency, 16)
	if s.RankFallbacks == nil {
		rank := true
		s.RankFallbacks = &rank
	}
	defFloat(&s.MinConfidence, 70)
	defFloat(&s.MaxConfidence, 92)
	defInt(&s.FetchAttempts, 2)
	def(&s.FetchBackoff, 100*time.Millisecond)
	def(&s.FetchTimeout, 8*time.Second)
	defInt(&s.RecencySize, 5)
	defInt(&s.LossThreshold, 2)
	def(&s.Cooldown, time.Hour)
	defInt(&s.HighTier, 92)
	defFloat(&s.HighBonus, 25)
	defInt(&s.MidTier, 85)
	defFloat(&s.MidBonus, 15)
	def(&s.EnrichTimeout, 8*time.Second)
	def(&s.SideEffectTimeout, 5*time.Second)

	m := &c.MarketData
	defStr(&m.BaseURL, "https://query1.finance.yahoo.com/v8/finance/chart")
	def(&m.Timeout, 10*time.Second)
	defFloat(&m.RateCapacity, 10)
	defFloat(&m.RatePerSecond, 5)
	if m.BreakerFailures == 0 {
		m.BreakerFailures = 5
	}
	def(&m.BreakerOpenFor, 30*time.Second)
	def(&m.CacheTTL, 30*time.Second)

	defStr(&c.Redis.Host, "localhost")
	defInt(&c.Redis.Port, 6379)
	defInt(&c.Redis.PoolSize, 10)
	defStr(&c.Redis.Prefix, "signalbot")
	defInt(&c.Redis.MemoryItems, 2000)
	def(&c.Redis.MemoryTTL, 10*time.Second)

	k := &c.Kafka
	defStr(&k.ClientID, "signalbot")
	defStr(&k.SignalsTopic, "signalbot.signals")
	defStr(&k.OutcomesTopic, "signalbot.outcomes")
	defStr(&k.Compression, "snappy")
	defInt(&k.Producer.MaxAttempts, 3)
	defInt(&k.Producer.BufferSize, 256)
	defStr(&k.Consumer.GroupID, "signalbot")
	defInt(&k.Consumer.Workers, 2)

	defStr(&c.ClickHouse.Host, "localhost")
	defInt(&c.ClickHouse.Port, 9000)
	defStr(&c.ClickHouse.Database, "signalbot")

	defInt(&c.Telegram.Workers, 2)
	defInt(&c.Telegram.RetryLimit, 3)
	def(&c.Telegram.RetryDelay, 10*time.Second)
	def(&c.Telegram.Timeout, 10*time.Second)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Signals.MinConfidence > c.Signals.MaxConfidence {
		return fmt.Errorf("signals.min_confidence %.1f exceeds max_confidence %.1f",
			c.Signals.MinConfidence, c.Signals.MaxConfidence)
	}
	if c.Signals.TopN < 1 {
		return fmt.Errorf("signals.top_n must be positive")
	}
	for class, plan := range c.ScanPlan {
		if class != "short" && class != "long" {
			return fmt.Errorf("scan_plan: unknown class %q", class)
		}
		if len(plan.Timeframes) == 0 || len(plan.Groups) == 0 {
			return fmt.Errorf("scan_plan.%s: timeframes and groups are required", class)
		}
	}
	for _, g := range c.Catalog {
		if g.Name == "" || len(g.Instruments) == 0 {
			return fmt.Errorf("catalog: every group needs a name and instruments")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.Telegram.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("telegram delivery needs redis for its job queue")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	if c.OpenRouter.Enabled && c.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter.api_key is required when openrouter is enabled")
	}
	if c.Log.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("log.collector publishes to kafka; enable kafka")
	}
	return nil
}
