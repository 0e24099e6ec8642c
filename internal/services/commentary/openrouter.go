package commentary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"SignalBot/internal/domain/models"
	"SignalBot/internal/service/cache"
	"SignalBot/pkg/logger"
)

var (
	ErrDisabled      = errors.New("commentary: no api key configured")
	ErrEmptyResponse = errors.New("commentary: empty model response")
	ErrNoJSON        = errors.New("commentary: no json object in response")
)

// Config holds OpenRouter settings.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Referer       string
	Title         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	Attempts      int
	CacheTTL      time.Duration
	MinConfidence float64
	MaxConfidence float64
	Language      string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://openrouter.ai/api/v1",
		Model:         "google/gemini-2.0-flash-thinking-exp:free",
		Referer:       "https://github.com/signalbot",
		Title:         "SignalBot",
		MaxTokens:     500,
		Temperature:   0.7,
		Timeout:       60 * time.Second,
		Attempts:      2,
		CacheTTL:      5 * time.Minute,
		MinConfidence: 60,
		MaxConfidence: 95,
		Language:      "Russian",
	}
}

// OpenRouter produces narrative commentary for a delivery through the
// OpenRouter chat completions API.
type OpenRouter struct {
	cfg   Config
	base  *HTTPServiceBase
	cache *cache.TTLCache
	log   *logger.Logger
}

// NewOpenRouter creates the enricher. Zero config fields take defaults.
func NewOpenRouter(cfg Config, c *cache.TTLCache, lgr *logger.Logger) *OpenRouter {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Referer == "" {
		cfg.Referer = def.Referer
	}
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxConfidence <= 0 || cfg.MaxConfidence < cfg.MinConfidence {
		cfg.MinConfidence, cfg.MaxConfidence = def.MinConfidence, def.MaxConfidence
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if c == nil {
		c = cache.NewTTLCache()
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &OpenRouter{
		cfg: cfg,
		base: NewHTTPServiceBase(cfg.BaseURL, cfg.Timeout, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
			"HTTP-Referer":  cfg.Referer,
			"X-Title":       cfg.Title,
		}),
		cache: c,
		log:   lgr,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Enrich returns commentary for d, cached per instrument, timeframe and
// direction.
func (o *OpenRouter) Enrich(ctx context.Context, d *models.Delivery) (*models.Commentary, error) {
	if o.cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	key := fmt.Sprintf("%s|%s|%s", d.Instrument.Name, d.Timeframe, d.Signal.Direction)
	if v, ok := o.cache.Get(key); ok {
		if c, ok := v.(*models.Commentary); ok {
			return c, nil
		}
	}

	req := chatRequest{
		Model:       o.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: o.prompt(d)}},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}
	var resp chatResponse
	if err := o.base.PostJSONWithRetry(ctx, "/chat/completions", req, &resp, o.cfg.Attempts); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	c, err := parseCommentary(resp.Choices[0].Message.Content)
	if err != nil {
		o.log.Warn("unparseable commentary", logger.String("instrument", d.Instrument.Name), logger.Error(err))
		return nil, err
	}
	c.Confidence = math.Max(o.cfg.MinConfidence, math.Min(o.cfg.MaxConfidence, c.Confidence))
	c.Model = o.cfg.Model
	c.GeneratedAt = time.Now()
	o.cache.Set(key, c, o.cfg.CacheTTL)
	return c, nil
}

func (o *OpenRouter) prompt(d *models.Delivery) string {
	s := d.Signal
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional binary options trader on Pocket Option.\n\n")
	fmt.Fprintf(&b, "Analyse the asset and give a trading signal.\n\n")
	fmt.Fprintf(&b, "ASSET: %s\nTIMEFRAME: %s\nPRICE: %.5f\n\n", d.Instrument.Name, d.Timeframe, s.Price)
	fmt.Fprintf(&b, "INDICATORS:\n- RSI (14): %.1f\n- MACD: %.6f\n- Stochastic K: %.1f\n", s.RSI, s.MACD, s.StochK)
	fmt.Fprintf(&b, "- EMA 20: %.5f\n- EMA 50: %.5f\n- Trend: %s\n- Volatility: %.2f%%\n", s.EMA20, s.EMA50, s.Trend, s.Volatility)
	fmt.Fprintf(&b, "- Scanner direction: %s (confidence %.1f)\n\n", s.Direction, s.Confidence)
	fmt.Fprintf(&b, "Reply with JSON only:\n")
	fmt.Fprintf(&b, `{"signal": "CALL" or "PUT", "confidence": number from 70 to 92, `)
	fmt.Fprintf(&b, `"reasoning": "2-3 sentences in %s", "key_factors": ["...", "...", "..."], `, o.cfg.Language)
	fmt.Fprintf(&b, `"risk_level": "LOW" or "MEDIUM" or "HIGH", "expiration": "recommended expiration"}`)
	return b.String()
}

// parseCommentary decodes the span between the first '{' and the last '}'.
func parseCommentary(content string) (*models.Commentary, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	var c models.Commentary
	if err := json.Unmarshal([]byte(content[start:end+1]), &c); err != nil {
		return nil, fmt.Errorf("decode commentary: %w", err)
	}
	c.Direction = models.Direction(strings.ToUpper(string(c.Direction)))
	if c.Direction != models.DirectionCall && c.Direction != models.DirectionPut {
		return nil, fmt.Errorf("decode commentary: unknown signal %q", c.Direction)
	}
	c.RiskLevel = strings.ToUpper(c.RiskLevel)
	return &c, nil
}
