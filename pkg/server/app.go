package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalBot/pkg/config"
	xhttp "SignalBot/pkg/http"
	applogger "SignalBot/pkg/logger"
)

// Service is a component with an explicit start and a graceful stop. The kafka
// consumer and the redis job queue both satisfy it.
type Service interface {
	Start() error
	Stop(ctx context.Context) error
}

type namedService struct {
	name string
	svc  Service
}

type namedCloser struct {
	name  string
	close func() error
}

// Option configures App.
type Option func(*App)

// WithService registers a component started after background loops and
// stopped, in reverse order, after the HTTP server.
func WithService(name string, s Service) Option {
	return func(a *App) {
		if s != nil {
			a.services = append(a.services, namedService{name: name, svc: s})
		}
	}
}

// WithBackground registers a loop bound to the application context.
func WithBackground(name string, run func(ctx context.Context)) Option {
	return func(a *App) {
		if run != nil {
			a.background = append(a.background, run)
			a.backgroundNames = append(a.backgroundNames, name)
		}
	}
}

// WithCloser registers a resource released last during shutdown.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, namedCloser{name: name, close: fn})
		}
	}
}

// WithLogPublisher enables shipping aggregated errors through p when the log
// collector is switched on in config.
func WithLogPublisher(p applogger.Publisher) Option {
	return func(a *App) {
		a.logPublisher = p
	}
}

// App encapsulates the application lifecycle.
type App struct {
	cfg             *config.Config
	log             *applogger.Logger
	httpServer      *xhttp.Server
	services        []namedService
	background      []func(ctx context.Context)
	backgroundNames []string
	closers         []namedCloser
	logPublisher    applogger.Publisher
}

// New creates an App around an already wired HTTP server.
func New(cfg *config.Config, lgr *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	a := &App{cfg: cfg, log: lgr, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HTTPServer exposes the wired server, mainly for tests.
func (a *App) HTTPServer() *xhttp.Server { return a.httpServer }

// Run starts every component and blocks until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.logPublisher != nil && a.cfg.Log.Collector.Enabled {
		a.log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:    a.cfg.Log.Collector.Interval,
			CountThreshold:  a.cfg.Log.Collector.CountThreshold,
			Topic:           a.cfg.Log.Collector.Topic,
			Publisher:       a.logPublisher,
			CollectWarnings: a.cfg.Log.Collector.Warnings,
		})
		a.log.Info("log collector attached", applogger.String("topic", a.cfg.Log.Collector.Topic))
	}

	for i, run := range a.background {
		go run(runCtx)
		a.log.Debug("background loop started", applogger.String("name", a.backgroundNames[i]))
	}

	started := make([]namedService, 0, len(a.services))
	for _, s := range a.services {
		if err := s.svc.Start(); err != nil {
			a.log.Error("service start failed", applogger.String("service", s.name), applogger.Error(err))
			a.stopServices(context.Background(), started)
			return fmt.Errorf("start %s: %w", s.name, err)
		}
		started = append(started, s)
		a.log.Info("service started", applogger.String("service", s.name))
	}

	if err := a.httpServer.Start(); err != nil {
		a.stopServices(context.Background(), started)
		return fmt.Errorf("start http server: %w", err)
	}
	a.log.Info("signalbot started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("addr", a.httpServer.Addr()))

	<-runCtx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(started)
}

// shutdown stops the HTTP server first so no new picks arrive, then the
// services, then releases clients.
func (a *App) shutdown(started []namedService) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if err := a.stopServices(ctx, started); err != nil {
		errs = append(errs, err)
	}
	// the collector publishes through the producer, which a closer releases
	a.log.RemoveCollector()
	for _, c := range a.closers {
		if err := c.close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) stopServices(ctx context.Context, started []namedService) error {
	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		s := started[i]
		if err := s.svc.Stop(ctx); err != nil {
			a.log.Warn("service stop error", applogger.String("service", s.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		// http, services and closers share one budget
		return 3 * a.cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
