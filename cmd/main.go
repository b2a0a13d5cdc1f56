package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/okian/perfscore/internal/adapters/http/api"
	"github.com/okian/perfscore/internal/adapters/ingest"
	service "github.com/okian/perfscore/internal/app"
	"github.com/okian/perfscore/internal/config"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "perfscore stopped with error", logger.Error(err))
	}
}

// run opens the store, starts the service and serves HTTP until ctx ends or
// the listener fails. ingestOpts are passed to the kafka consumer.
func run(ctx context.Context, cfg *config.Config, log logger.Logger, ingestOpts ...ingest.Option) error {
	m := metrics.NewManager()

	store, err := service.OpenStore(ctx, cfg, log.Named("store"))
	if err != nil {
		return err
	}

	svc := service.New(
		service.WithStore(store),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithHistoryLimit(cfg.HistoryLimit),
		service.WithCacheTTL(cfg.CacheTTL()),
		service.WithRecomputeRate(cfg.RecomputeRate, cfg.RecomputeBurst),
		service.WithMetrics(m),
		service.WithLogger(log.Named("service")),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close(ctx)
		return err
	}

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()

	var wg sync.WaitGroup
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		opts := append([]ingest.Option{
			ingest.WithLogger(log.Named("ingest")),
			ingest.WithMetrics(m),
		}, ingestOpts...)
		consumer, err := ingest.NewTaskEventConsumer(
			ingest.Config{Brokers: brokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup},
			svc,
			func(err error) bool { return errors.Is(err, service.ErrBackpressure) },
			opts...,
		)
		if err != nil {
			_ = svc.Stop(context.Background())
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = consumer.Close() }()
			if err := consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "task event consumer failed", logger.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, m, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	cancelConsumer()
	wg.Wait()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service stop failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return err
}

// newMux registers the API routes backed by svc.
func newMux(ctx context.Context, svc *service.Service, m *metrics.Manager, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, m, log.Named("http")).Register(ctx, mux)
	return mux
}
