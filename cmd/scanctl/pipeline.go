package main

import (
	"fmt"

	"SignalBot/internal/di"
	"SignalBot/internal/usecase"
	"SignalBot/pkg/config"
	"SignalBot/pkg/logger"
	"SignalBot/pkg/metrics"
)

// newLocalService builds the scan and selection pipeline with an in-memory
// bar cache and no side effects.
func newLocalService(cfg *config.Config) (*usecase.SignalService, error) {
	lgr, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	m := metrics.Nop{}

	cat, err := di.ProvideCatalog(cfg)
	if err != nil {
		return nil, err
	}
	plan, err := di.ProvideScanPlan(cfg, cat)
	if err != nil {
		return nil, err
	}
	md := di.ProvideMarketData(cfg, di.ProvideBarCache(cfg, nil), lgr)
	sc := di.ProvideScorer(cfg, md, lgr, m)
	orch := di.ProvideOrchestrator(cfg, sc, cat, plan, lgr, m)
	filter := di.ProvideSelectionFilter(cfg, orch, lgr, m)

	priorities := usecase.DefaultPriorityTimeouts()
	for k, v := range cfg.Priorities {
		priorities[k] = v
	}
	return usecase.NewSignalService(orch, filter, usecase.ServiceConfig{
		PriorityTimeouts:  priorities,
		EnrichTimeout:     cfg.Signals.EnrichTimeout,
		SideEffectTimeout: cfg.Signals.SideEffectTimeout,
	}, usecase.WithServiceLogger(lgr)), nil
}
