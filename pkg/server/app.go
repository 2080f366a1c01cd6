package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"CryptoCast/internal/usecase"
	"CryptoCast/pkg/config"
	xhttp "CryptoCast/pkg/http"
	"CryptoCast/pkg/logger"
	"CryptoCast/pkg/queue"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// Option attaches optional components to App.
type Option func(*App)

// WithQueue runs the pipeline job queue alongside the HTTP server.
func WithQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.queue = q }
}

// WithScheduler runs scheduled retrains alongside the HTTP server.
func WithScheduler(s *usecase.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithCloser registers a resource released on shutdown, in registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, namedCloser{name: name, c: c}) }
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *logger.Logger
	svc         *usecase.ForecastService
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	queue       *queue.RedisQueue
	scheduler   *usecase.Scheduler
	closers     []namedCloser
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, lgr *logger.Logger, svc *usecase.ForecastService, handler xhttp.Handler, opts ...Option) *App {
	a := &App{cfg: cfg, log: lgr, svc: svc, httpHandler: handler}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Service exposes the forecast use case to command line tools.
func (a *App) Service() *usecase.ForecastService { return a.svc }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.log, a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.log.Error("queue start error", logger.Error(err))
			return err
		}
		a.log.Info("pipeline queue started", logger.Int("workers", a.cfg.Queue.Workers))
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}
	a.log.Info("cryptocast started",
		logger.String("env", a.cfg.Environment),
		logger.String("symbol", a.cfg.Binance.Symbol),
		logger.String("artifacts", a.cfg.Artifacts.Dir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.Shutdown(ctx)
}

// Shutdown stops background work and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", logger.Error(err))
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.queue != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.queue.Stop(stopCtx); err != nil {
			a.log.Warn("queue stop error", logger.Error(err))
		}
		cancel()
	}

	// flush aggregated logs before the producer goes away
	a.log.RemoveCollector()
	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", logger.String("resource", nc.name), logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
