package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"provenance/internal/platform/chain"
	"provenance/internal/platform/config"
	"provenance/internal/platform/httpserver"
	"provenance/internal/platform/logger"
	platformredis "provenance/internal/platform/redis"
	"provenance/internal/platform/token"
	"provenance/internal/registry/handler"
	"provenance/internal/registry/metrics"
	"provenance/internal/registry/service"
	"provenance/internal/registry/store"
	"provenance/internal/registry/store/cache"
	"provenance/internal/registry/treasury"
	auditpkg "provenance/pkg/platform/audit"
	"provenance/pkg/platform/audit/publisher"
	auditkafka "provenance/pkg/platform/audit/publishers/kafka"
	auditmemory "provenance/pkg/platform/audit/store/memory"
)

// main wires the registry's dependencies and keeps the server lifecycle
// small. Business logic lives in internal/registry.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registryStore, cleanupStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanupStore()

	auditSink, cleanupAudit, err := buildAuditSink(ctx, cfg)
	if err != nil {
		log.Error("audit sink init failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanupAudit()
	auditPublisher := publisher.NewPublisher(auditSink,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithAuditPublisher(auditPublisher),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithExistenceCache(cache.NewExistence(redisClient, cfg.Redis.CacheTTL)))
		log.Info("existence cache enabled")
	}

	registry := service.New(registryStore, treasury.NewLedger(), opts...)
	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	clock := chain.NewIntervalClock(time.Now().UTC(), cfg.BlockInterval)

	router := chi.NewRouter()
	handler.New(registry, log, clock, tokens).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting provenance registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildStore selects Postgres when configured, otherwise the in-memory
// store seeded with the configured ceiling and fee.
func buildStore(ctx context.Context, cfg config.Server) (store.Store, func(), error) {
	if cfg.PostgresURL == "" {
		mem := store.NewMemory(
			store.WithMaxBatches(cfg.MaxBatches),
			store.WithRegistrationFee(cfg.DefaultFee),
		)
		return mem, func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(ctx, cfg.MaxBatches, cfg.DefaultFee); err != nil {
		db.Close()
		return nil, nil, err
	}
	return pg, func() { db.Close() }, nil
}

// buildAuditSink prefers Kafka when brokers are configured; the in-memory
// store keeps the audit trail queryable in single-process deployments.
func buildAuditSink(ctx context.Context, cfg config.Server) (auditpkg.Store, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return auditmemory.NewInMemoryStore(), func() {}, nil
	}
	sink, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { sink.Close() }, nil
}
