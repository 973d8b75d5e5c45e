package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/server"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/store"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-core/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/searchd.yaml", "path to config file (empty for defaults)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("searchd exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("searchd stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting searchd",
		"port", cfg.Server.Port,
		"scorer", cfg.Engine.Scorer,
		"postgres", cfg.Postgres.Enabled,
		"kafka", cfg.Kafka.Enabled,
		"remote_cache", cfg.Engine.Cache.RemoteEnabled,
	)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker(0)
	engineOpts := []engine.Option{engine.WithMetrics(m)}

	if cfg.Engine.Cache.RemoteEnabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, caching stays local", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     15 * time.Second,
				OnStateChange: func(name string, state resilience.State) {
					m.SetCircuitState(name, int(state))
				},
			})
			engineOpts = append(engineOpts, engine.WithRemoteCache(cache.NewGuardedRemote(redisClient, breaker)))
			checker.Optional("redis", redisClient.Ping)
			slog.Info("remote cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	eng, err := engine.New(cfg.Engine, engineOpts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()
	checker.Require("engine", eng.Ping)

	agg := analytics.NewAggregator(0, 0)
	handlerOpts := []handler.Option{handler.WithAnalytics(agg)}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to document store: %w", err)
		}
		defer db.Close()
		docs := store.NewPostgres(db, 0)
		if err := docs.Migrate(ctx); err != nil {
			return err
		}
		n, err := eng.Rebuild(ctx, docs)
		if err != nil {
			return fmt.Errorf("cold-start rebuild: %w", err)
		}
		stored, err := docs.Count(ctx)
		if err != nil {
			slog.Warn("could not count stored documents", "error", err)
		} else if stored != n {
			// invalid rows are skipped; writes during the scan also land here
			slog.Warn("rebuilt index differs from document store", "stored", stored, "indexed", n)
		}
		slog.Info("index rebuilt from document store", "documents", n)
		handlerOpts = append(handlerOpts, handler.WithStore(docs))
		checker.Optional("postgres", db.Ping)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.DocumentChanges
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		handlerOpts = append(handlerOpts, handler.WithPublisher(ingest.NewPublisher(producer)))

		// with a store the rebuild covers history; without one the retained
		// feed is the only source
		var consumerOpts []kafka.ConsumerOption
		if !cfg.Postgres.Enabled {
			consumerOpts = append(consumerOpts, kafka.FromFirstOffset())
		}
		changes := kafka.NewConsumer(cfg.Kafka, topic, ingest.NewHandler(eng, m).Handle, consumerOpts...)
		g.Go(func() error {
			return changes.Start(gctx)
		})
		checker.Optional("kafka", func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		})
		slog.Info("change feed enabled", "topic", topic, "group", changes.GroupID())
	}

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit.Enabled {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
		sweepStop := make(chan struct{})
		defer close(sweepStop)
		go limiter.RunSweeper(5*time.Minute, sweepStop)
	}

	h := handler.New(eng, cfg.Search, handlerOpts...)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h, checker, cfg.Server, limiter, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("searchd listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "reason", context.Cause(gctx))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
