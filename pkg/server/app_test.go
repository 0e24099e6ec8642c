package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalBot/pkg/config"
	xhttp "SignalBot/pkg/http"
	applogger "SignalBot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeService struct {
	name     string
	rec      *recorder
	startErr error
}

func (f *fakeService) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.rec.add("start:" + f.name)
	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.rec.add("stop:" + f.name)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func testServer(cfg *config.Config) *xhttp.Server {
	return xhttp.NewServer(applogger.Nop(), nil,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
	)
}

func TestApp_RunStartsAndStopsInOrder(t *testing.T) {
	cfg := testConfig()
	rec := &recorder{}
	bgDone := make(chan struct{})

	app := New(cfg, applogger.Nop(), testServer(cfg),
		WithService("consumer", &fakeService{name: "consumer", rec: rec}),
		WithService("queue", &fakeService{name: "queue", rec: rec}),
		WithBackground("publisher", func(ctx context.Context) {
			<-ctx.Done()
			close(bgDone)
		}),
		WithCloser("producer", func() error {
			rec.add("close:producer")
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(rec.list()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
	<-bgDone

	assert.Equal(t, []string{
		"start:consumer",
		"start:queue",
		"stop:queue",
		"stop:consumer",
		"close:producer",
	}, rec.list())
}

func TestApp_StartFailureUnwindsStartedServices(t *testing.T) {
	cfg := testConfig()
	rec := &recorder{}
	boom := errors.New("broker unreachable")

	app := New(cfg, applogger.Nop(), testServer(cfg),
		WithService("queue", &fakeService{name: "queue", rec: rec}),
		WithService("consumer", &fakeService{name: "consumer", rec: rec, startErr: boom}),
	)

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start:queue", "stop:queue"}, rec.list())
}

func TestApp_CloserErrorsAreJoined(t *testing.T) {
	cfg := testConfig()
	failure := errors.New("flush failed")

	app := New(cfg, applogger.Nop(), testServer(cfg),
		WithCloser("clickhouse", func() error { return failure }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.Run(ctx)
	assert.ErrorIs(t, err, failure)
}

func TestApp_NilOptionsIgnored(t *testing.T) {
	cfg := testConfig()
	app := New(cfg, nil, testServer(cfg),
		WithService("none", nil),
		WithBackground("none", nil),
		WithCloser("none", nil),
	)
	assert.Empty(t, app.services)
	assert.Empty(t, app.background)
	assert.Empty(t, app.closers)
	assert.NotNil(t, app.HTTPServer())
}
