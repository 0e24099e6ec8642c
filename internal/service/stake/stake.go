package stake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnknownStrategy = errors.New("stake: unknown strategy")

const (
	Martingale   = "martingale"
	Percentage   = "percentage"
	DAlembert    = "dalembert"
	Conservative = "conservative"
)

// Strategy sizes the next stake. Implementations are stateless.
type Strategy interface {
	Name() string
	// Initial is the opening stake for balance.
	Initial(balance decimal.Decimal) decimal.Decimal
	// NextStake is the stake after a settled trade of size current.
	NextStake(current, base decimal.Decimal, won bool) decimal.Decimal
}

type martingale struct{ multiplier decimal.Decimal }

func (martingale) Name() string { return Martingale }

// Initial spreads the balance over a year of trading days.
func (martingale) Initial(balance decimal.Decimal) decimal.Decimal {
	return balance.Div(decimal.NewFromInt(364))
}

func (m martingale) NextStake(current, base decimal.Decimal, won bool) decimal.Decimal {
	if won {
		return base
	}
	return current.Mul(m.multiplier)
}

// fraction stakes a constant share of the balance regardless of outcome.
type fraction struct {
	name  string
	share decimal.Decimal
}

func (f fraction) Name() string { return f.name }

func (f fraction) Initial(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(f.share)
}

func (fraction) NextStake(_, base decimal.Decimal, _ bool) decimal.Decimal {
	return base
}

type dalembert struct {
	unit  decimal.Decimal
	share decimal.Decimal
}

func (dalembert) Name() string { return DAlembert }

func (d dalembert) Initial(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(d.share)
}

func (d dalembert) NextStake(current, base decimal.Decimal, won bool) decimal.Decimal {
	if won {
		return decimal.Max(base, current.Sub(d.unit))
	}
	return current.Add(d.unit)
}

// Config holds strategy parameters.
type Config struct {
	MartingaleMultiplier float64 `yaml:"martingale_multiplier"`
	PercentageShare      float64 `yaml:"percentage"`
	DAlembertUnit        float64 `yaml:"dalembert_unit"`
	DAlembertShare       float64 `yaml:"dalembert_share"`
	ConservativeShare    float64 `yaml:"conservative"`
}

func DefaultConfig() Config {
	return Config{
		MartingaleMultiplier: 3,
		PercentageShare:      2.5,
		DAlembertUnit:        10,
		DAlembertShare:       2,
		ConservativeShare:    1,
	}
}

// Registry resolves strategy tags.
type Registry struct {
	byName map[string]Strategy
}

// NewRegistry builds the strategy set from cfg; zero fields take defaults.
// Shares are percentages of the balance.
func NewRegistry(cfg Config) *Registry {
	def := DefaultConfig()
	pick := func(v, d float64) float64 {
		if v > 0 {
			return v
		}
		return d
	}
	pct := func(v float64) decimal.Decimal {
		return decimal.NewFromFloat(v).Div(decimal.NewFromInt(100))
	}
	strategies := []Strategy{
		martingale{multiplier: decimal.NewFromFloat(pick(cfg.MartingaleMultiplier, def.MartingaleMultiplier))},
		fraction{name: Percentage, share: pct(pick(cfg.PercentageShare, def.PercentageShare))},
		dalembert{
			unit:  decimal.NewFromFloat(pick(cfg.DAlembertUnit, def.DAlembertUnit)),
			share: pct(pick(cfg.DAlembertShare, def.DAlembertShare)),
		},
		fraction{name: Conservative, share: pct(pick(cfg.ConservativeShare, def.ConservativeShare))},
	}
	r := &Registry{byName: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.byName[s.Name()] = s
	}
	return r
}

// Get returns the strategy for tag. Unknown tags resolve to martingale
// together with ErrUnknownStrategy so callers can log and continue.
func (r *Registry) Get(tag string) (Strategy, error) {
	if s, ok := r.byName[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return s, nil
	}
	return r.byName[Martingale], fmt.Errorf("%w: %q", ErrUnknownStrategy, tag)
}

// Names lists the registered tags.
func (r *Registry) Names() []string {
	return []string{Martingale, Percentage, DAlembert, Conservative}
}

// Step is one sizing query.
type Step struct {
	Balance decimal.Decimal
	Current decimal.Decimal
	Base    decimal.Decimal
	// Won is nil for an opening trade.
	Won *bool
}

// Next returns the stake for step under s. A zero base is derived from the
// balance.
func Next(s Strategy, step Step) decimal.Decimal {
	base := step.Base
	if base.IsZero() {
		base = s.Initial(step.Balance)
	}
	if step.Won == nil || step.Current.IsZero() {
		return base
	}
	return s.NextStake(step.Current, base, *step.Won)
}
