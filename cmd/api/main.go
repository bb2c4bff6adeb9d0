package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/licitaware/procurement-match-backend/internal/api/rest"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/cache"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/database"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/embedding"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/pncp"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/repository"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/telemetry"
	"github.com/licitaware/procurement-match-backend/internal/service/jobs"
	"github.com/licitaware/procurement-match-backend/internal/service/matching"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	zapLogger, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	var vectorCache cache.VectorCache = cache.NoopVectorCache{}
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		vectorCache = cache.NewRedisVectorCache(redisClient, cfg.Embedding.CacheTTL, zapLogger)
	} else {
		zapLogger.Warn("redis not configured, embedding cache disabled")
	}

	vectorizer, err := embedding.New(cfg.Embedding.Backend, &cfg.Embedding, vectorCache, zapLogger)
	if err != nil {
		return fmt.Errorf("building vectorizer: %w", err)
	}
	phase2Vectorizer := vectorizer
	if cfg.Embedding.Phase2Backend != "" && cfg.Embedding.Phase2Backend != cfg.Embedding.Backend {
		phase2Vectorizer, err = embedding.New(cfg.Embedding.Phase2Backend, &cfg.Embedding, vectorCache, zapLogger)
		if err != nil {
			return fmt.Errorf("building phase 2 vectorizer: %w", err)
		}
	}

	metrics := newRunMetrics()

	factory := matching.NewFactory(matching.DefaultConfig(cfg), matching.Dependencies{
		Source:           pncp.NewClient(&cfg.PNCP, zapLogger),
		Bids:             repository.NewBidRepository(pool),
		Companies:        repository.NewCompanyRepository(pool),
		Matches:          repository.NewMatchRepository(pool),
		Vectorizer:       vectorizer,
		Phase2Vectorizer: phase2Vectorizer,
		Metrics:          metrics,
		Logger:           zapLogger,
	})

	runner := jobs.NewRunner(zapLogger)
	server := rest.NewServer(cfg, rest.FactoryAdapter{Factory: factory}, runner, metrics.Handler(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	zapLogger.Info("procurement match backend started",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.String("embedding_backend", vectorizer.ID()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	zapLogger.Info("shutdown complete")
	return nil
}
