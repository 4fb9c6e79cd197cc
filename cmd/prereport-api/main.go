// cmd/prereport-api/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"prereport-service/internal/api"
	"prereport-service/internal/audit"
	"prereport-service/internal/common/aws"
	"prereport-service/internal/common/camunda"
	"prereport-service/internal/common/config"
	"prereport-service/internal/common/database"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/common/observability"
	"prereport-service/internal/employees"
	"prereport-service/internal/prereport/cache"
	"prereport-service/internal/prereport/notify"
	"prereport-service/internal/prereport/search"
	"prereport-service/internal/prereport/store"
	"prereport-service/internal/prereport/wizard"
	urs "prereport-service/internal/workers/review/update-report-status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pre-report service...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingOptions{
		ServiceName:    cfg.App.Name,
		Environment:    cfg.App.Environment,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pg.DB, store.Schema, employees.Schema, audit.Schema); err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
		zapLog.Info("Schema migrations applied")
	}

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := []api.Check{
		{Name: "postgres", Fn: pg.Ping},
		{Name: "redis", Fn: rdb.Ping},
	}

	reportCache := cache.New(rdb.Client,
		config.GetDuration(cfg.Wizard.DetailCacheTTL),
		config.GetDuration(cfg.Wizard.LookupCacheTTL),
		log,
	)

	deps := wizard.Deps{
		Store:         store.NewPostgresStore(pg.DB),
		Locker:        cache.NewRedisLocker(rdb.Client),
		Cache:         reportCache,
		Observability: obs,
	}

	recorder := audit.NewRecorder(pg.DB, log)
	deps.Audit = recorder

	// --- Elasticsearch ---
	if cfg.Search.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		index := search.New(esClient.Client, cfg.Search.Index, log)
		if err := index.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("failed to ensure search index", zap.Error(err))
		}
		deps.Index = index
		checks = append(checks, api.Check{Name: "elasticsearch", Fn: esClient.Ping})
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Search.Index))
	}

	// --- Notifications ---
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SNS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to load aws config", zap.Error(err))
		}
		var email notify.EmailSender
		if cfg.Notifications.Email.Enabled {
			email = aws.NewSESClient(awsCfg, cfg.Notifications.Email.FromEmail)
		}
		var events notify.EventPublisher
		if cfg.Notifications.SNS.Enabled {
			events = aws.NewSNSClient(awsCfg, cfg.Notifications.SNS.TopicARN)
		}
		deps.Notifier = notify.New(email, events, cfg.Notifications.Email.Reviewers, log)
		zapLog.Info("Notification channels initialized",
			zap.Bool("email", email != nil),
			zap.Bool("sns", events != nil),
		)
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		deps.Review = zeebe
		checks = append(checks, api.Check{Name: "zeebe", Fn: zeebe.HealthCheck})
		zapLog.Info("Zeebe client connected successfully")
	}

	svc := wizard.NewService(wizard.Config{
		SaveTimeout:     config.GetDuration(cfg.Wizard.SaveTimeout),
		LockTTL:         config.GetDuration(cfg.Wizard.SaveLockTTL),
		ReviewProcessID: cfg.Camunda.ReviewProcessID,
	}, deps, log)

	// --- Review worker ---
	var reviewWorker *camunda.CamundaWorker
	if zeebe != nil && config.IsWorkerEnabled(cfg, urs.TaskType) {
		handler, err := urs.NewHandler(urs.HandlerOptions{
			AppConfig:     cfg,
			Updater:       svc,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create update-report-status handler", zap.Error(err))
		}
		wcfg := handler.Config()
		reviewWorker = camunda.NewWorker(zeebe.GetClient(), urs.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       wcfg.Timeout,
		}, handler, zapLog)
		reviewWorker.Start()
	}

	server := api.NewServer(cfg.Server, api.Deps{
		Wizard:    svc,
		Employees: employees.NewDirectory(pg.DB, reportCache, log),
		Logins:    recorder,
		Checks:    checks,
	}, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received")
	case err := <-serverErr:
		zapLog.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if reviewWorker != nil {
		reviewWorker.Stop(shutdownCtx)
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Warn("Error flushing traces", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("Error shutting down observability", zap.Error(err))
	}

	zapLog.Info("Pre-report service stopped gracefully")
}
