package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-event-log/internal/config"
	"solana-event-log/internal/ingestion"
	"solana-event-log/internal/observability"
	"solana-event-log/internal/solana"
	chstore "solana-event-log/internal/storage/clickhouse"
	"solana-event-log/internal/storage/migrations"
	"solana-event-log/internal/storage/memory"
	pgstore "solana-event-log/internal/storage/postgres"
	"solana-event-log/internal/stream"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("ingest failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics("", prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, logger.Named("metrics"))
	}

	sink, closeSink, err := openSink(ctx, cfg, logger.Named("sink"))
	if err != nil {
		return err
	}
	defer closeSink()

	projectors, err := ingestion.NewProjectorRegistry(cfg.MinAmount, cfg.EnabledProjectors())
	if err != nil {
		return fmt.Errorf("projectors: %w", err)
	}

	dispatcher := ingestion.NewDispatcher(sink, cfg.DispatcherConfig(), logger.Named("dispatcher"), metrics)
	dispatcher.Start(ctx)

	processor := ingestion.NewProcessor(ingestion.ProcessorOptions{
		Projectors: projectors,
		Submitter:  dispatcher,
		Logger:     logger.Named("processor"),
		Metrics:    metrics,
	})

	wsCfg := solana.DefaultWSConfig()
	wsCfg.HandshakeTimeout = cfg.ConnectTimeout
	wsCfg.WriteTimeout = cfg.SubscribeTimeout
	wsCfg.ReadTimeout = cfg.ReadTimeout
	wsCfg.PingInterval = cfg.PingInterval

	supervisor := stream.New(stream.Options{
		Dialer:  solana.NewWSDialer(cfg.WSEndpoint, &wsCfg),
		Request: solana.NewTransactionSubscribe(cfg.Accounts(), cfg.Commitment),
		Handler: processor,
		Drain:   dispatcher.Drain,
		Config:  cfg.StreamConfig(),
		Logger:  logger.Named("supervisor"),
		Metrics: metrics,
	})

	logger.Info("starting ingest",
		zap.String("sink", cfg.Sink),
		zap.Strings("accounts", cfg.Accounts()),
		zap.Strings("projectors", projectors.Enabled()),
		zap.Float64("min_amount", cfg.MinAmount))

	if err := supervisor.Run(ctx); err != nil {
		if errors.Is(err, stream.ErrRetriesExhausted) {
			return fmt.Errorf("upstream unavailable: %w", err)
		}
		return err
	}
	return nil
}

// openSink connects the configured sink, applying migrations when requested.
// The returned func releases its connections.
func openSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ingestion.EventSink, func(), error) {
	switch cfg.Sink {
	case config.SinkMemory:
		logger.Warn("using in-memory sink, events are not durable")
		return memory.NewEventStore(), func() {}, nil

	case config.SinkPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresConnString(), pgstore.WithMaxConns(cfg.PGMaxConns))
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		return pgstore.NewEventStore(pool), pool.Close, nil

	case config.SinkClickhouse:
		// The ClickHouse connection is opened by the migrator, so its DDL
		// always runs; every statement is IF NOT EXISTS.
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closeConn := func() {
			if err := conn.Close(); err != nil {
				logger.Warn("close clickhouse", zap.Error(err))
			}
		}
		return chstore.NewEventStore(conn), closeConn, nil
	}
	return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
