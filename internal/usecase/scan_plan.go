package usecase

import (
	"fmt"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
)

// GroupGate is one catalog group scanned with its own confidence gate.
type GroupGate struct {
	Group         string  `yaml:"group"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// ClassPlan describes what a scan of one signal class covers.
type ClassPlan struct {
	Timeframes []domrepo.Timeframe `yaml:"timeframes"`
	Groups     []GroupGate         `yaml:"groups"`
	// FallbackGroups are drawn from when nothing clears the gates.
	FallbackGroups []string `yaml:"fallback_groups"`
}

// ScanPlan maps each signal class to its plan.
type ScanPlan map[models.SignalClass]ClassPlan

const (
	otcGate     = 80
	regularGate = 75
)

// DefaultScanPlan scans short-horizon timeframes across every OTC and regular
// group and long-horizon timeframes across forex, stocks and commodities.
func DefaultScanPlan() ScanPlan {
	return ScanPlan{
		models.ClassShort: {
			Timeframes: []domrepo.Timeframe{domrepo.TF1M, domrepo.TF5M},
			Groups: []GroupGate{
				{Group: "crypto_otc", MinConfidence: otcGate},
				{Group: "forex_otc", MinConfidence: otcGate},
				{Group: "stocks_otc", MinConfidence: otcGate},
				{Group: "crypto", MinConfidence: regularGate},
				{Group: "forex", MinConfidence: regularGate},
				{Group: "stocks", MinConfidence: regularGate},
				{Group: "commodities", MinConfidence: regularGate},
			},
			FallbackGroups: []string{"crypto_otc", "forex_otc"},
		},
		models.ClassLong: {
			Timeframes: []domrepo.Timeframe{domrepo.TF1H, domrepo.TF4H},
			Groups: []GroupGate{
				{Group: "forex_otc", MinConfidence: otcGate},
				{Group: "forex", MinConfidence: regularGate},
				{Group: "stocks", MinConfidence: regularGate},
				{Group: "commodities", MinConfidence: regularGate},
			},
			FallbackGroups: []string{"forex_otc", "stocks_otc"},
		},
	}
}

// Validate checks the plan against the catalog it will run on.
func (p ScanPlan) Validate(cat Catalog) error {
	for _, class := range []models.SignalClass{models.ClassShort, models.ClassLong} {
		cp, ok := p[class]
		if !ok {
			return fmt.Errorf("scan plan: class %s missing", class)
		}
		if len(cp.Timeframes) == 0 {
			return fmt.Errorf("scan plan: class %s has no timeframes", class)
		}
		for _, tf := range cp.Timeframes {
			if !domrepo.IsValidTimeframe(tf) {
				return fmt.Errorf("scan plan: class %s: invalid timeframe %q", class, tf)
			}
		}
		if len(cp.Groups) == 0 {
			return fmt.Errorf("scan plan: class %s has no groups", class)
		}
		for _, g := range append(groupNames(cp.Groups), cp.FallbackGroups...) {
			if _, err := cat.Group(g); err != nil {
				return fmt.Errorf("scan plan: class %s: %w", class, err)
			}
		}
		if len(cp.FallbackGroups) == 0 {
			return fmt.Errorf("scan plan: class %s has no fallback groups", class)
		}
	}
	return nil
}

func groupNames(gs []GroupGate) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Group
	}
	return out
}
