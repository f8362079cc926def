// Package main - точка входа фонового воркера oracle-service.
//
// Воркер снимает задачи аналитических сессий с очереди Redis, собирает
// сигналы предмета через внутренний API core-service, строит граф
// концептов, отчёт и прогноз, затем публикует новую версию и диффы
// обратно в core-service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sparke-study/oracle-service/config"
	"github.com/sparke-study/oracle-service/internal/application/command"
	"github.com/sparke-study/oracle-service/internal/domain/session"
	"github.com/sparke-study/oracle-service/internal/infrastructure/external/core"
	"github.com/sparke-study/oracle-service/internal/infrastructure/messaging"
	"github.com/sparke-study/oracle-service/internal/infrastructure/persistence/postgres"
	redisstore "github.com/sparke-study/oracle-service/internal/infrastructure/persistence/redis"
	"github.com/sparke-study/oracle-service/internal/infrastructure/service"
	"github.com/sparke-study/oracle-service/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	log.Info("starting oracle worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (очередь задач и in-flight маркеры)
	// ─────────────────────────────────────────────────────────────────────────
	rdb, err := newRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure redis: %w", err)
	}
	defer func() {
		log.Info("closing redis connection...")
		_ = rdb.Close()
	}()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	log.Info("redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL (журнал запусков, опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var journal session.Repository
	if !cfg.Database.Disabled && cfg.Features.IsEnabled(config.FeatureSessionJournal) {
		log.Info("connecting to database...")
		dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		journal = postgres.NewSessionRunRepository(dbConn)
		log.Info("run journal enabled")
	} else {
		log.Info("run journal disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. CORE-SERVICE CLIENT И АДАПТЕРЫ
	// ─────────────────────────────────────────────────────────────────────────
	clientCfg := core.DefaultClientConfig(cfg.Core.BaseURL, cfg.Core.APISecret)
	clientCfg.LegacyAPIKey = cfg.Core.LegacyAPIKey
	clientCfg.Timeout = cfg.Core.RequestTimeout
	clientCfg.Logger = log
	clientCfg.Debug = cfg.App.Debug
	clientCfg.RateLimiterConfig.RequestsPerSecond = cfg.Core.RateLimit
	clientCfg.RateLimiterConfig.BurstSize = cfg.Core.RateLimitBurst
	clientCfg.RetryConfig.MaxRetries = cfg.Core.MaxRetries
	clientCfg.RetryConfig.InitialBackoff = cfg.Core.RetryBaseDelay
	clientCfg.RetryConfig.MaxBackoff = cfg.Core.RetryMaxDelay
	clientCfg.CircuitBreakerConfig.FailureThreshold = cfg.Core.CircuitBreakerThreshold
	clientCfg.CircuitBreakerConfig.Timeout = cfg.Core.CircuitBreakerTimeout
	clientCfg.CircuitBreakerConfig.HalfOpenMaxRetries = cfg.Core.CircuitBreakerHalfOpenMax
	client := core.NewClient(clientCfg)

	adapter := service.NewCoreAPIAdapter(client)
	modeler := service.NewFrequencyTopicModeler()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ОБРАБОТЧИК СЕССИЙ
	// ─────────────────────────────────────────────────────────────────────────
	engineCfg := command.DefaultEngineConfig()
	engineCfg.TaxonomyMatchMin = cfg.Engine.TaxonomyMatchMin
	engineCfg.DiffMasteryDeltaThreshold = cfg.Engine.DiffMasteryDeltaThreshold
	engineCfg.DiffFuzzyJaccardMin = cfg.Engine.DiffFuzzyJaccardMin
	engineCfg.DiffFuzzyMatchEnabled = cfg.Features.IsEnabled(config.FeatureDiffFuzzyMatch)
	engineCfg.SuppressTemplateWarnings = !cfg.Features.IsEnabled(config.FeatureTemplateWarnings)

	handler := command.NewRunInsightSessionHandler(
		adapter, // documents
		adapter, // chunks
		adapter, // questions
		modeler,
		adapter, // templates
		adapter, // versions
		adapter, // progress
		adapter, // sessions
		journal,
		engineCfg,
		log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОЧЕРЕДЬ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	tracker := redisstore.NewInflightTracker(rdb, redisstore.InflightTrackerConfig{
		TTL: cfg.Queue.InflightTTL,
	})

	consumerCfg := messaging.DefaultConsumerConfig()
	consumerCfg.QueueKey = cfg.Queue.Key
	consumerCfg.Workers = cfg.Queue.Workers
	consumerCfg.PopTimeout = cfg.Queue.PopTimeout
	consumerCfg.Logger = log

	consumer, err := messaging.NewConsumer(rdb, handler, tracker, consumerCfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("oracle worker is running", "queue", cfg.Queue.Key, "workers", cfg.Queue.Workers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	if err := consumer.Close(); err != nil {
		log.Error("consumer close failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// newRedisClient builds the Redis client from URL or host settings.
func newRedisClient(cfg *config.Config) (*goredis.Client, error) {
	if cfg.Redis.URL != "" {
		opts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return goredis.NewClient(opts), nil
	}

	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.RedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}), nil
}
