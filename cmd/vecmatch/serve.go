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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/config"
	dbRedis "github.com/kailas-cloud/vecmatch/internal/db/redis"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	"github.com/kailas-cloud/vecmatch/internal/domain/collection/field"
	logpkg "github.com/kailas-cloud/vecmatch/internal/logger"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
	"github.com/kailas-cloud/vecmatch/internal/repository/embcache"
	"github.com/kailas-cloud/vecmatch/internal/repository/hnswindex"
	recordrepo "github.com/kailas-cloud/vecmatch/internal/repository/record"
	"github.com/kailas-cloud/vecmatch/internal/repository/respcache"
	chiTransport "github.com/kailas-cloud/vecmatch/internal/transport/chi"
	clipEmb "github.com/kailas-cloud/vecmatch/internal/transport/clip"
	openaiEmb "github.com/kailas-cloud/vecmatch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecmatch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
	"github.com/kailas-cloud/vecmatch/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.env)
		},
	}
}

// serve is the composition root.
func serve(ctx context.Context, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vecmatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create database store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterMatchMetrics()

	collections, err := collectionsFromConfig(cfg)
	if err != nil {
		return err
	}

	embedder, checker := buildEmbedder(cfg.Embedding, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	cache := respcache.New(store, time.Duration(cfg.Cache.TTLSec)*time.Second,
		metrics.ResponseCacheTotal, logger)

	svc := matchuc.New(buildIndex(cfg.Index, store), cache, embedder, collections, logger)
	switch {
	case cfg.Generator.Enabled:
		svc.WithGenerator(openaiEmb.NewGenerator(&openaiEmb.GeneratorConfig{
			APIKey:    cfg.Generator.APIKey,
			BaseURL:   cfg.Generator.BaseURL,
			Model:     cfg.Generator.Model,
			MaxTokens: cfg.Generator.MaxTokens,
		}), cfg.Generator.Fallback)
	case cfg.Generator.Fallback != "":
		svc.WithGenerator(nil, cfg.Generator.Fallback)
	}

	if err := svc.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("ensure collections: %w", err)
	}
	logger.Info("Collections ready", zap.Strings("collections", svc.Collections()))

	healthSvc := healthuc.New(store, checker)
	server := chiTransport.NewServer(svc, healthSvc, logger).
		WithPagination(cfg.Match.DefaultPerPage, cfg.Match.MaxPerPage)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chiTransport.NewRouter(server, cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// collectionsFromConfig builds the collection schemas. Every collection shares
// the embedding dimension.
func collectionsFromConfig(cfg config.Config) ([]domcol.Collection, error) {
	out := make([]domcol.Collection, 0, len(cfg.Collections))
	for _, cc := range cfg.Collections {
		fields := make([]field.Field, 0, len(cc.Fields))
		for _, fc := range cc.Fields {
			f, err := field.New(fc.Name, field.Type(fc.Type))
			if err != nil {
				return nil, fmt.Errorf("collection %s: field %q: %w", cc.Name, fc.Name, err)
			}
			fields = append(fields, f)
		}
		col, err := domcol.New(cc.Name, fields, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", cc.Name, err)
		}
		out = append(out, col)
	}
	return out, nil
}

// kvStore is what the Redis-backed caches need from the store.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction.
// The provider itself is returned as the health checker.
func buildEmbedder(cfg config.EmbeddingConfig, store kvStore, logger *zap.Logger) (domain.Embedder, domain.HealthChecker) {
	var base interface {
		domain.Embedder
		domain.HealthChecker
	}
	switch cfg.Provider {
	case config.ProviderCLIP:
		base = clipEmb.New(&clipEmb.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
	default:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
	}

	var embedder domain.Embedder = base
	if cfg.Cache && store != nil {
		embedder = embcache.New(embedder, store, cfg.Provider+":"+cfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if cfg.Instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Instruction)
	}
	return embedder, base
}

// buildIndex selects the vector index driver.
func buildIndex(cfg config.IndexConfig, store *dbRedis.Store) matchuc.Index {
	if cfg.Driver == config.IndexDriverHNSW {
		return hnswindex.New(hnswindex.Config{M: cfg.HNSWM, EfSearch: cfg.HNSWEFSearch})
	}
	return recordrepo.New(store).WithHNSW(recordrepo.HNSWConfig{
		M:           cfg.HNSWM,
		EFConstruct: cfg.HNSWEFConstruct,
	})
}
