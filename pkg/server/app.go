package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SpinPull/pkg/config"
	xhttp "SpinPull/pkg/http"
	pkgkafka "SpinPull/pkg/kafka"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/queue"
)

const sweepEvery = time.Minute

// Sweeper drops idle per-client state on a timer.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Closer is released during shutdown, after intake has stopped.
type Closer interface {
	Close()
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	queue    *queue.RedisQueue
	sweeper  Sweeper
	hub      Closer
}

// Option attaches optional intake paths and resources.
type Option func(*App)

// WithKafka consumes handler's topic with consumer. Either may be nil.
func WithKafka(consumer *pkgkafka.Consumer, handler pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = consumer
		a.kh = handler
	}
}

// WithQueue runs the Redis queue consumer.
func WithQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.queue = q }
}

func WithSweeper(s Sweeper) Option {
	return func(a *App) { a.sweeper = s }
}

// WithHub closes live subscribers on shutdown.
func WithHub(h Closer) Option {
	return func(a *App) { a.hub = h }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler, opts ...Option) *App {
	a := &App{cfg: cfg, l: l.With("app")}
	for _, opt := range opts {
		opt(a)
	}
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetrics(cfg.Metrics.Enabled, nil, nil),
		xhttp.WithLogger(l),
	)
	return a
}

// Start launches the HTTP server and every configured intake path.
func (a *App) Start(ctx context.Context) error {
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
	}

	if a.sweeper != nil {
		go a.sweep(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.Shutdown(context.Background())
}

func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.sweeper.Sweep(10 * sweepEvery); n > 0 {
				a.l.Debug("idle rate limit buckets dropped", applogger.Int("count", n))
			}
		}
	}
}

// Shutdown stops intake so in-flight spins finish. The store and the Kafka
// producer are closed afterwards by the injector's cleanup.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.l.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	a.l.RemoveCollector()
	a.l.Info("shutdown complete")
	return nil
}
